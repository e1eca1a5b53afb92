// Package find drives the site's search bar: scoped queries over the
// films, members, lists and tags categories, with best-match ranking
// for picking one result out of the noise.
package find

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/htmlutil"
	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/paginate"
	"lunaboxd/lib/textutil"
)

var tracer = otel.Tracer("scrapers/letterboxd/find")

// Category scopes a search to one kind of result.
type Category string

const (
	Films   Category = "films"
	Members Category = "members"
	Lists   Category = "lists"
	Tags    Category = "tags"
)

// NoLimit collects every result a search has.
const NoLimit = paginate.NoLimit

// Result is one search hit. Name and Slug are set for every category,
// Owner only for lists.
type Result struct {
	Category Category
	// Name is the display text of the hit.
	Name string
	// Slug is the path fragment identifying the hit: the film path
	// slug, the member's username, the list path or the tag slug.
	Slug string
	// Owner is the username owning a list hit.
	Owner string
}

// extractors is the category registry. Each entry reads its kind of
// result out of a search page's results listing.
var extractors = map[Category]func(results *goquery.Selection) []Result{
	Films:   extractFilms,
	Members: extractMembers,
	Lists:   extractLists,
	Tags:    extractTags,
}

// Client runs searches through an authenticated session.
type Client struct {
	Core *core.Client
}

type Options struct {
	Core *core.Client
}

func New(opts Options) (*Client, error) {
	if opts.Core == nil {
		return nil, core.ValidationError{Reason: "find client requires a session"}
	}
	return &Client{Core: opts.Core}, nil
}

// Search runs one scoped query and collects up to limit results in the
// site's ranking order. NoLimit collects every page. A query the site
// knows nothing about returns an empty slice, not an error.
func (c *Client) Search(ctx context.Context, category Category, query string, limit int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "find:Search")
	defer span.End()

	extract, ok := extractors[category]
	if !ok {
		return nil, core.ValidationError{Reason: fmt.Sprintf("unknown search category %q", category)}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ValidationError{Reason: "search query is empty"}
	}
	span.SetAttributes(
		attribute.String("category", string(category)),
		attribute.String("query", query),
		attribute.Int("limit", limit),
	)

	escaped := url.PathEscape(query)
	results, err := paginate.CollectKnownLastPage(ctx, paginate.KnownLastPage[Result]{
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			return c.Core.GetDocument(ctx, fmt.Sprintf("search/%s/%s/page/%d", category, escaped, page))
		},
		Extract: func(doc *goquery.Document) ([]Result, error) {
			return extract(doc.Find("ul.results").First()), nil
		},
		Limit: limit,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk search results")
		return nil, fmt.Errorf("search %s %q: %w", category, query, err)
	}
	return results, nil
}

// BestMatch ranks results against the query by name similarity and
// returns the closest hit with its similarity. Comparison runs over
// normalized text, so case and spacing differences do not count
// against a hit.
func BestMatch(query string, results []Result) (Result, float64, bool) {
	if len(results) == 0 {
		return Result{}, 0, false
	}
	normalized := textutil.Normalize(query)

	best := results[0]
	bestSimilarity := -1.0
	for _, result := range results {
		similarity := matchr.JaroWinkler(normalized, textutil.Normalize(result.Name), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = result
		}
	}
	return best, bestSimilarity, true
}

var (
	filmHrefRegex = regexp.MustCompile(`/film/([\w-]+)/`)
	tagHrefRegex  = regexp.MustCompile(`/tag/([\w-]+)/`)
)

func extractFilms(results *goquery.Selection) []Result {
	var out []Result
	results.Find("span.film-title-wrapper").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		groups := filmHrefRegex.FindStringSubmatch(link.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		// the title link's text can end with the release year link's
		// text, which is not part of the title
		name := link.Text()
		year := s.Find(`a[href^="/films/year/"]`).First().Text()
		if year != "" {
			name = strings.TrimSuffix(strings.TrimSpace(name), year)
		}
		out = append(out, Result{
			Category: Films,
			Name:     htmlutil.NormalizeSpace(name),
			Slug:     groups[1],
		})
	})
	return out
}

func extractMembers(results *goquery.Selection) []Result {
	var out []Result
	results.Find("a.name").Each(func(_ int, s *goquery.Selection) {
		username := strings.Trim(s.AttrOr("href", ""), "/")
		if username == "" {
			return
		}
		out = append(out, Result{
			Category: Members,
			Name:     htmlutil.NormalizeSpace(s.Text()),
			Slug:     username,
		})
	})
	return out
}

func extractLists(results *goquery.Selection) []Result {
	var out []Result
	results.Find("section.list").Each(func(_ int, s *goquery.Selection) {
		out = append(out, Result{
			Category: Lists,
			Name:     htmlutil.NormalizeSpace(s.Find("h2.title-2.prettify").First().Text()),
			Slug:     strings.Trim(s.Find("a").First().AttrOr("href", ""), "/"),
			Owner:    s.AttrOr("data-person", ""),
		})
	})
	return out
}

func extractTags(results *goquery.Selection) []Result {
	var out []Result
	results.Find(`a[href^="/tag/"]`).Each(func(_ int, s *goquery.Selection) {
		groups := tagHrefRegex.FindStringSubmatch(s.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		out = append(out, Result{
			Category: Tags,
			Name:     htmlutil.NormalizeSpace(s.Text()),
			Slug:     groups[1],
		})
	})
	return out
}
