package member

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/paginate"
)

// Tag categories the site indexes per member.
const (
	TagsDiary   = "diary"
	TagsReviews = "reviews"
	TagsLists   = "lists"
)

// Tag is one entry of a member's tag index.
type Tag struct {
	Name string
	// Uses is how many times the member has applied the tag within
	// the category.
	Uses int
}

// tagCategory maps the singular and plural spellings the site mixes
// onto the path form each listing expects.
func tagCategory(category string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "diary":
		return TagsDiary, nil
	case "review", "reviews":
		return TagsReviews, nil
	case "list", "lists":
		return TagsLists, nil
	}
	return "", core.ValidationError{Reason: fmt.Sprintf("unknown tag category %q", category)}
}

var noTagsRegex = regexp.MustCompile(`^No [a-zA-Z]+ tags yet$`)

// noTags recognizes the "No diary tags yet" placeholder page.
func noTags(doc *goquery.Document) bool {
	found := false
	doc.Find("h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if noTagsRegex.MatchString(strings.TrimSpace(s.Text())) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Tags lists the tags a member has applied within one category
// (TagsDiary, TagsReviews or TagsLists) and how often each one is
// used, in the site's order. Singular category spellings are accepted.
func (c *Client) Tags(ctx context.Context, username, category string) ([]Tag, error) {
	ctx, span := tracer.Start(ctx, "member:Tags")
	defer span.End()

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	category, err = tagCategory(category)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("category", category),
	)

	tags, err := paginate.CollectKnownLastPage(ctx, paginate.KnownLastPage[Tag]{
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			return c.Core.GetDocument(ctx, fmt.Sprintf("%s/tags/%s/page/%d", username, category, page))
		},
		Extract:   c.extractTags,
		NoResults: noTags,
		Limit:     paginate.NoLimit,
		Report:    c.api,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk tag index")
		return nil, fmt.Errorf("member %q %s tags: %w", username, category, err)
	}
	return tags, nil
}

// extractTags pulls tag entries out of one index page. Entries without
// a titled link are decorative and skipped; entries without a count
// span have been used once.
func (c *Client) extractTags(doc *goquery.Document) ([]Tag, error) {
	var tags []Tag
	doc.Find("ul.tags li").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[title]").First()
		if link.Length() == 0 {
			return
		}
		tag := Tag{Name: link.AttrOr("title", ""), Uses: 1}
		if count := strings.TrimSpace(s.Find("span").First().Text()); count != "" {
			uses, err := strconv.Atoi(count)
			if err != nil {
				c.api.ReportWarning("member.tags", "unreadable tag count", tag.Name, err)
			} else {
				tag.Uses = uses
			}
		}
		tags = append(tags, tag)
	})
	return tags, nil
}

// viewingMarkers locates the element wrapping each viewing link on a
// tagged listing page; the markup differs per category.
var viewingMarkers = map[string]string{
	TagsReviews: ".film-detail-content",
	TagsDiary:   ".headline-3.prettify",
	TagsLists:   ".title-2.prettify",
}

// TaggedViewings lists the site paths of a member's viewings carrying
// the given tag within one category. The paths lead to the review,
// diary entry or list pages behind the tag, ready for the viewing
// scraper to resolve.
func (c *Client) TaggedViewings(ctx context.Context, username, category, tag string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "member:TaggedViewings")
	defer span.End()

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	category, err = tagCategory(category)
	if err != nil {
		return nil, err
	}
	tagSlug, err := letterboxd.Slugify(tag)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("category", category),
		attribute.String("tag", tagSlug),
	)

	marker := viewingMarkers[category]
	links, err := paginate.CollectSentinelLink(ctx, paginate.SentinelLink[string]{
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			return c.Core.GetDocument(ctx, fmt.Sprintf("%s/tag/%s/%s/page/%d", username, tagSlug, category, page))
		},
		Extract: func(doc *goquery.Document) ([]string, error) {
			var links []string
			doc.Find(marker).Each(func(_ int, s *goquery.Selection) {
				if href := s.Find("a").First().AttrOr("href", ""); href != "" {
					links = append(links, href)
				}
			})
			return links, nil
		},
		Report: c.api,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk tagged listing")
		return nil, fmt.Errorf("member %q tag %q: %w", username, tagSlug, err)
	}
	return links, nil
}
