// Package film scrapes film pages: the descriptive attributes, the
// audience statistics fragments and the rating histogram, plus the
// mutating actions a logged-in member can take on a film.
package film

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/report"
	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/ratings"
	"lunaboxd/lib/textutil"
)

var tracer = otel.Tracer("scrapers/letterboxd/film")

// ShortLinkPrefix is the origin of the site's film short links.
const ShortLinkPrefix = "https://boxd.it/"

// Film is everything one film's pages expose. Slug is canonical: when
// the site redirects a lookup (an id lookup, a renamed path), Slug
// holds the path the site settled on.
type Film struct {
	Slug      string
	Id        int64
	ShortLink string

	Name       string
	PrettyName string
	// Year is zero for films without a release year.
	Year        int
	Genres      []string
	RuntimeMins int
	Description string
	// Languages, Regions and Studios hold the site's path slugs
	// verbatim, e.g. "english", "usa", "warner-bros".
	Languages         []string
	Regions           []string
	Studios           []string
	Crew              map[string][]string
	Cast              []string
	AlternativeTitles []string
	PosterUrl         string
	BannerUrl         string

	Watches int64
	Likes   int64
	Lists   int64
	// Fans is rounded by the site ("4.5K").
	Fans int64

	Histogram ratings.Histogram
	// WeightedAverage is the site's own score, only published once a
	// film has enough ratings.
	WeightedAverage    float64
	HasWeightedAverage bool
	FriendHistogram    ratings.Histogram
}

// Uri returns the unique trailing part of the film's short link.
func (f *Film) Uri() string {
	return strings.TrimPrefix(f.ShortLink, ShortLinkPrefix)
}

// IsShort reports whether the site considers the film a short film.
func (f *Film) IsShort() bool {
	return f.RuntimeMins > 0 && f.RuntimeMins < 40
}

// TrueMean is the plain mean of the film's rating histogram.
func (f *Film) TrueMean() (float64, bool) {
	return ratings.TrueMean(f.Histogram)
}

// BayesianScore is the smoothed lower-bound score of the film's rating
// histogram, the neutral middle for unrated films.
func (f *Film) BayesianScore() float64 {
	return ratings.BayesianScore(f.Histogram, ratings.DefaultPseudoCount, ratings.MiddleRating)
}

// FriendBayesianScore is the smoothed score over the ratings of the
// session user's friends, false when no friend has rated the film.
func (f *Film) FriendBayesianScore() (float64, bool) {
	if f.FriendHistogram.Total() == 0 {
		return 0, false
	}
	return ratings.BayesianScore(f.FriendHistogram, ratings.DefaultPseudoCount, 0), true
}

// IsIronic reports the joke-rating pattern on the film's histogram.
func (f *Film) IsIronic() bool {
	return ratings.IsIronic(f.Histogram, ratings.DefaultIronicMinimum)
}

// Client scrapes film pages through an authenticated session.
type Client struct {
	Core *core.Client

	api   report.API
	cache *lru.Cache[string, *Film]
}

type Options struct {
	Core *core.Client
	// Report receives diagnostics, report.NoopAPI{} when unset.
	Report report.API
	// CacheSize bounds the per-process fetched-film cache, 64 when
	// zero. Negative disables caching.
	CacheSize int
}

func New(opts Options) (*Client, error) {
	if opts.Core == nil {
		return nil, core.ValidationError{Reason: "film client requires a session"}
	}
	if opts.Report == nil {
		opts.Report = report.NoopAPI{}
	}

	var cache *lru.Cache[string, *Film]
	if opts.CacheSize >= 0 {
		size := opts.CacheSize
		if size == 0 {
			size = 64
		}
		var err error
		cache, err = lru.New[string, *Film](size)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		Core:  opts.Core,
		api:   report.NewScopedAPI("letterboxd_film", opts.Report),
		cache: cache,
	}, nil
}

// Fetch scrapes one film given its path slug. A slug that the site
// redirects (e.g. the "film:{id}" form) is resolved to its canonical
// path. Results are served from the client cache when present.
func (c *Client) Fetch(ctx context.Context, slug string) (*Film, error) {
	ctx, span := tracer.Start(ctx, "film:Fetch")
	defer span.End()

	slug, err := letterboxd.Slugify(slug)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("slug", slug))

	if c.cache != nil {
		if film, ok := c.cache.Get(slug); ok {
			span.AddEvent("cache hit")
			return film, nil
		}
	}
	requested := slug

	res, err := c.Core.Get(ctx, "film/"+slug+"/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch film page")
		return nil, err
	}
	if canonical := canonicalSlug(res); canonical != "" && canonical != slug {
		slog.DebugContext(ctx, "film path redirected", "from", slug, "to", canonical)
		slug = canonical
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	film := &Film{Slug: slug}
	err = c.parseMain(doc, film)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract film attributes")
		return nil, fmt.Errorf("film %q: %w", slug, err)
	}

	err = c.fetchStats(ctx, film)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch stats fragment")
		return nil, err
	}
	err = c.fetchRatingHistogram(ctx, film)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch rating fragment")
		return nil, err
	}
	err = c.fetchFriendActivity(ctx, film)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch friend activity fragment")
		return nil, err
	}

	if c.cache != nil {
		c.cache.Add(requested, film)
		if slug != requested {
			c.cache.Add(slug, film)
		}
	}
	return film, nil
}

// FetchById scrapes a film given its numeric id, through the site's
// "film:{id}" redirect path.
func (c *Client) FetchById(ctx context.Context, id int64) (*Film, error) {
	return c.Fetch(ctx, fmt.Sprintf("film:%d", id))
}

// canonicalSlug recovers the film path the site settled on after
// redirects, empty when the final url is not a film page.
func canonicalSlug(res *core.Response) string {
	if res.FinalUrl == nil {
		return ""
	}
	path := strings.Trim(res.FinalUrl.Path, "/")
	if !strings.HasPrefix(path, "film/") {
		return ""
	}
	return strings.TrimPrefix(path, "film/")
}

var (
	filmDataRegex    = regexp.MustCompile(`var filmData = \{(.*?)\};`)
	filmNameRegex    = regexp.MustCompile(`name: "(.*?)",`)
	releaseYearRegex = regexp.MustCompile(`releaseYear: "(\d{4})`)
	genreHrefRegex   = regexp.MustCompile(`/films/genre/([-\w\s:]+)/`)
	runtimeRegex     = regexp.MustCompile(`([\d,]+)`)
	posterRegex      = regexp.MustCompile(`"image":"(https://a\.ltrbxd\.com/[/\d\w\-.?=]+)"`)
)

func (c *Client) parseMain(doc *goquery.Document, film *Film) error {
	filmData := ""
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		groups := filmDataRegex.FindStringSubmatch(s.Text())
		if len(groups) < 2 {
			return true
		}
		filmData = groups[1]
		return false
	})
	if filmData == "" {
		return fmt.Errorf("page carries no filmData script")
	}

	groups := filmNameRegex.FindStringSubmatch(filmData)
	if len(groups) < 2 {
		return fmt.Errorf("filmData carries no name")
	}
	film.Name = strings.ReplaceAll(groups[1], `\`, "")
	if groups := releaseYearRegex.FindStringSubmatch(filmData); len(groups) >= 2 {
		film.Year, _ = strconv.Atoi(groups[1])
	}

	film.PrettyName = letterboxd.DecodeXMLRefs(
		strings.TrimSpace(doc.Find("h1.headline-1").First().Text()))

	wrapper := doc.Find("div#film-page-wrapper")
	id := wrapper.Find("div.film-poster").AttrOr("data-film-id", "")
	filmId, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("page carries no film id: %w", err)
	}
	film.Id = filmId

	shortLink := doc.Find(fmt.Sprintf("input#url-field-%d", film.Id)).AttrOr("value", "")
	if shortLink != "" && !strings.HasPrefix(shortLink, ShortLinkPrefix) {
		c.api.ReportWarning("film.short-link", "unexpected short link", shortLink)
		shortLink = ""
	}
	film.ShortLink = shortLink

	footer := wrapper.Find("p.text-link.text-footer").First().Text()
	if groups := runtimeRegex.FindStringSubmatch(footer); len(groups) >= 2 {
		film.RuntimeMins, _ = strconv.Atoi(strings.ReplaceAll(groups[1], ",", ""))
	}

	var paragraphs []string
	doc.Find("div.review p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, s.Text())
	})
	film.Description = strings.TrimSpace(strings.Join(paragraphs, ""))

	doc.Find("div#tab-genres a.text-slug").Each(func(_ int, s *goquery.Selection) {
		groups := genreHrefRegex.FindStringSubmatch(s.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		film.Genres = append(film.Genres, textutil.TitleCase(groups[1]))
	})
	sort.Strings(film.Genres)

	// the site lists a film's original language and spoken languages in
	// the same tab, so the same language can appear twice
	film.Languages = tabDetail(doc, "films/language", true)
	film.Regions = tabDetail(doc, "films/country", false)
	film.Studios = tabDetail(doc, "studio", false)
	film.Crew = parseCrew(doc)
	film.Cast = parseCast(doc)
	film.AlternativeTitles = parseAlternativeTitles(doc)

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		groups := posterRegex.FindStringSubmatch(s.Text())
		if len(groups) < 2 {
			return true
		}
		film.PosterUrl = groups[1]
		return false
	})
	film.BannerUrl = doc.Find("div#backdrop").AttrOr("data-backdrop", "")

	return nil
}

// tabDetail collects the slugs of every details-tab link under the
// given href section, e.g. "films/language" -> ["english", "german"].
func tabDetail(doc *goquery.Document, section string, dedupe bool) []string {
	re := regexp.MustCompile(`(?:` + section + `/)([-\w\s:]+)/`)
	var out []string
	seen := map[string]bool{}
	doc.Find("div#tab-details a").Each(func(_ int, s *goquery.Selection) {
		groups := re.FindStringSubmatch(s.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		if dedupe {
			if seen[groups[1]] {
				return
			}
			seen[groups[1]] = true
		}
		out = append(out, groups[1])
	})
	return out
}

func parseCrew(doc *goquery.Document) map[string][]string {
	crew := map[string][]string{}
	doc.Find("div#tab-crew a").Each(func(_ int, s *goquery.Selection) {
		parts := strings.Split(strings.Trim(s.AttrOr("href", ""), "/"), "/")
		if len(parts) < 2 {
			return
		}
		role := textutil.TitleCase(parts[0])
		person := textutil.SlugToName(strings.Join(parts[1:], "/"))
		crew[role] = append(crew[role], person)
	})
	return crew
}

func parseCast(doc *goquery.Document) []string {
	var cast []string
	doc.Find("div#tab-cast div.cast-list a").Each(func(_ int, s *goquery.Selection) {
		cast = append(cast, s.Text())
	})
	return cast
}

func parseAlternativeTitles(doc *goquery.Document) []string {
	var titles []string
	doc.Find("div#tab-details h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "Alternative Titles") {
			return true
		}
		for _, title := range strings.Split(s.Next().Find("p").First().Text(), ",") {
			title = strings.TrimSpace(title)
			if title != "" {
				titles = append(titles, title)
			}
		}
		return false
	})
	return titles
}

var (
	watchesRegex  = regexp.MustCompile(`Watched by ([\d,]+)`)
	listsRegex    = regexp.MustCompile(`Appears in ([\d,]+)`)
	likesRegex    = regexp.MustCompile(`Liked by ([\d,]+)`)
	fansRegex     = regexp.MustCompile(`([\w\d.]+) fans`)
	weightedRegex = regexp.MustCompile(`Weighted average of ([\d.]+) based on`)
)

func (c *Client) fetchStats(ctx context.Context, film *Film) error {
	doc, err := c.Core.GetDocument(ctx, "esi/film/"+film.Slug+"/stats")
	if err != nil {
		return err
	}

	film.Watches, err = statCount(doc, "a.icon-watched", watchesRegex)
	if err != nil {
		return fmt.Errorf("film %q stats: %w", film.Slug, err)
	}
	film.Lists, err = statCount(doc, "a.icon-list", listsRegex)
	if err != nil {
		return fmt.Errorf("film %q stats: %w", film.Slug, err)
	}
	film.Likes, err = statCount(doc, "a.icon-liked", likesRegex)
	if err != nil {
		return fmt.Errorf("film %q stats: %w", film.Slug, err)
	}
	return nil
}

func statCount(doc *goquery.Document, selector string, re *regexp.Regexp) (int64, error) {
	title := doc.Find(selector).First().AttrOr("title", "")
	groups := re.FindStringSubmatch(title)
	if len(groups) < 2 {
		return 0, fmt.Errorf("stats fragment carries no %s count", selector)
	}
	return strconv.ParseInt(strings.ReplaceAll(groups[1], ",", ""), 10, 64)
}

func (c *Client) fetchRatingHistogram(ctx context.Context, film *Film) error {
	doc, err := c.Core.GetDocument(ctx, "csi/film/"+film.Slug+"/rating-histogram/")
	if err != nil {
		return err
	}

	film.Histogram = letterboxd.ParseHistogram(doc)

	if groups := fansRegex.FindStringSubmatch(doc.Text()); len(groups) >= 2 {
		fans, err := letterboxd.ParseShortNum(groups[1])
		if err != nil {
			c.api.ReportWarning("film.fans", err)
		} else {
			film.Fans = fans
		}
	}

	doc.Find("a[title]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		groups := weightedRegex.FindStringSubmatch(s.AttrOr("title", ""))
		if len(groups) < 2 {
			return true
		}
		avg, err := strconv.ParseFloat(groups[1], 64)
		if err != nil {
			return true
		}
		film.WeightedAverage = avg
		film.HasWeightedAverage = true
		return false
	})
	return nil
}

func (c *Client) fetchFriendActivity(ctx context.Context, film *Film) error {
	res, err := c.Core.Do(ctx, core.Request{
		Method: resty.MethodGet,
		Path:   "csi/film/" + film.Slug + "/friend-activity/",
		Query:  map[string]string{"esiAllowUser": "true"},
	})
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body))
	if err != nil {
		return err
	}

	h := ratings.Histogram{}
	doc.Find("span.-micro").Each(func(_ int, s *goquery.Selection) {
		value, err := ratings.ParseStars(strings.TrimSpace(s.Text()))
		if err != nil {
			return
		}
		h[int(value*2)]++
	})
	film.FriendHistogram = h
	return nil
}
