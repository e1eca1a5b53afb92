package core

import (
	"net/http"
	"sort"
	"strings"
)

// filmFilterCookie stores the site-wide film display filters, e.g.
// "show-watched" or "hide-docs", as a "%20"-separated list. Setting it
// changes what every film listing shows until it is reset.
const filmFilterCookie = "filmFilter"

// FilmFilter returns the set of active film display filters.
func (c *Client) FilmFilter() map[string]bool {
	filters := map[string]bool{}
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		if cookie.Name != filmFilterCookie {
			continue
		}
		for _, f := range strings.Split(cookie.Value, "%20") {
			if f != "" {
				filters[f] = true
			}
		}
	}
	return filters
}

// SetFilmFilter replaces the active filter set.
func (c *Client) SetFilmFilter(filters map[string]bool) {
	names := make([]string, 0, len(filters))
	for f, on := range filters {
		if on {
			names = append(names, f)
		}
	}
	// cookie values must be stable so persisted snapshots do not churn
	sort.Strings(names)

	c.Http.GetClient().Jar.SetCookies(c.BaseUrl, []*http.Cookie{{
		Name:  filmFilterCookie,
		Value: strings.Join(names, "%20"),
	}})
}

// ResetFilmFilter clears every active filter.
func (c *Client) ResetFilmFilter() {
	c.SetFilmFilter(nil)
}

// ExtendFilmFilter adds filters to the active set.
func (c *Client) ExtendFilmFilter(filters ...string) {
	active := c.FilmFilter()
	for _, f := range filters {
		active[f] = true
	}
	c.SetFilmFilter(active)
}

// RemoveFilmFilter removes filters from the active set.
func (c *Client) RemoveFilmFilter(filters ...string) {
	active := c.FilmFilter()
	for _, f := range filters {
		delete(active, f)
	}
	c.SetFilmFilter(active)
}
