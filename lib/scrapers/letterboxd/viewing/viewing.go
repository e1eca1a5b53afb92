// Package viewing scrapes and edits viewings: the diary entries and
// reviews a member logs against a film. A viewing lives at
// "{username}/film/{slug}/", with an ordinal suffix once the member
// has logged the same film more than once.
package viewing

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/report"
	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/core"
)

var tracer = otel.Tracer("scrapers/letterboxd/viewing")

// Viewing is one logged watch of a film, with everything its page
// exposes. Rating is in half-star units 0-10, 0 meaning unrated.
type Viewing struct {
	Username string
	FilmSlug string
	// Num distinguishes repeat viewings of the same film, 0 for the
	// first.
	Num int

	ViewingId int64
	FilmId    int64
	FilmName  string

	// DateSpecified reports whether the member pinned the watch to a
	// day, which is what makes the viewing a diary entry. Date falls
	// back to the day the viewing was added when unpinned.
	DateSpecified bool
	Date          time.Time

	Rating           int
	Liked            bool
	Rewatch          bool
	Review           string
	ContainsSpoilers bool
	Tags             []string
}

// IsDiaryEntry reports whether the viewing appears in the member's
// diary.
func (v *Viewing) IsDiaryEntry() bool {
	return v.DateSpecified
}

// IsReview reports whether the viewing carries review text.
func (v *Viewing) IsReview() bool {
	return v.Review != ""
}

// Path is the site path of the viewing's page.
func (v *Viewing) Path() string {
	path := v.Username + "/film/" + v.FilmSlug + "/"
	if v.Num > 0 {
		path += strconv.Itoa(v.Num) + "/"
	}
	return path
}

// ParsePath splits a viewing path like "nia/film/stalker/2/" into its
// parts. The ordinal is 0 when the path names the member's first
// viewing of the film.
func ParsePath(path string) (username, slug string, num int, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 || parts[1] != "film" {
		return "", "", 0, core.ValidationError{
			Reason: fmt.Sprintf("%q is not a viewing path", path),
		}
	}
	if len(parts) == 4 {
		num, err = strconv.Atoi(parts[3])
		if err != nil || num < 1 {
			return "", "", 0, core.ValidationError{
				Reason: fmt.Sprintf("%q is not a viewing ordinal", parts[3]),
			}
		}
	}
	return parts[0], parts[2], num, nil
}

// Client scrapes viewing pages through an authenticated session.
type Client struct {
	Core *core.Client

	api report.API
}

type Options struct {
	Core *core.Client
	// Report receives diagnostics, report.NoopAPI{} when unset.
	Report report.API
}

func New(opts Options) (*Client, error) {
	if opts.Core == nil {
		return nil, core.ValidationError{Reason: "viewing client requires a session"}
	}
	if opts.Report == nil {
		opts.Report = report.NoopAPI{}
	}
	return &Client{
		Core: opts.Core,
		api:  report.NewScopedAPI("letterboxd_viewing", opts.Report),
	}, nil
}

// Fetch scrapes one viewing given its path. For the session user's own
// viewings the review text is read back from the edit form, so it
// round-trips through Save without the site's rendering applied.
func (c *Client) Fetch(ctx context.Context, path string) (*Viewing, error) {
	ctx, span := tracer.Start(ctx, "viewing:Fetch")
	defer span.End()

	username, slug, num, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	v := &Viewing{Username: username, FilmSlug: slug, Num: num}
	span.SetAttributes(attribute.String("path", v.Path()))

	doc, err := c.Core.GetDocument(ctx, v.Path())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch viewing page")
		return nil, fmt.Errorf("viewing %q: %w", v.Path(), err)
	}

	err = c.parsePage(doc, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract viewing attributes")
		return nil, fmt.Errorf("viewing %q: %w", v.Path(), err)
	}

	err = c.fetchLiked(ctx, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch activity page")
		return nil, err
	}

	if strings.EqualFold(username, c.Core.Username) {
		err = c.fetchOwnReview(ctx, v)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch review source")
			return nil, err
		}
	}
	return v, nil
}

var (
	viewingIdRegex = regexp.MustCompile(`/csi/viewing/(\d+)/`)
	diaryDayRegex  = regexp.MustCompile(`/for/(\d{4})/(\d{1,2})/(\d{1,2})/?$`)
)

func (c *Client) parsePage(doc *goquery.Document, v *Viewing) error {
	doc.Find("div.js-csi").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		groups := viewingIdRegex.FindStringSubmatch(s.AttrOr("data-src", ""))
		if len(groups) < 2 {
			return true
		}
		v.ViewingId, _ = strconv.ParseInt(groups[1], 10, 64)
		return false
	})
	if v.ViewingId == 0 {
		return fmt.Errorf("page carries no viewing id")
	}

	poster := doc.Find("div.film-poster").First()
	filmId, err := strconv.ParseInt(poster.AttrOr("data-film-id", ""), 10, 64)
	if err != nil {
		return fmt.Errorf("page carries no film id: %w", err)
	}
	v.FilmId = filmId
	v.FilmName = poster.Find("img").First().AttrOr("alt", "")
	if v.FilmName == "" {
		return fmt.Errorf("page carries no film name")
	}

	err = parseDate(doc, v)
	if err != nil {
		return err
	}
	v.Rewatch = strings.Contains(doc.Find("p.view-date").First().Text(), "Rewatched")

	v.Rating = parseRating(doc)

	doc.Find("ul.tags a").Each(func(_ int, s *goquery.Selection) {
		v.Tags = append(v.Tags, strings.TrimSpace(s.Text()))
	})

	v.Review = reviewText(doc.Find("div.review div").Last())
	v.ContainsSpoilers = v.Review != "" && hasSpoilerNotice(doc)
	return nil
}

// parseDate reads the watched-on day. Dated entries link each day to
// the member's diary; undated ones only show the day the viewing was
// added, as plain text.
func parseDate(doc *goquery.Document, v *Viewing) error {
	dateLinks := doc.Find("p.date-links").First()
	v.DateSpecified = dateLinks.Find("a").Length() > 0

	if v.DateSpecified {
		found := false
		var parseErr error
		doc.Find("p.view-date a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			groups := diaryDayRegex.FindStringSubmatch(s.AttrOr("href", ""))
			if len(groups) < 4 {
				return true
			}
			year, _ := strconv.Atoi(groups[1])
			month, err := strconv.Atoi(groups[2])
			if err != nil || month < 1 || month > 12 {
				parseErr = fmt.Errorf("diary link carries month %q", groups[2])
				return false
			}
			day, _ := strconv.Atoi(groups[3])
			v.Date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			found = true
			return false
		})
		if parseErr != nil {
			return parseErr
		}
		if !found {
			return fmt.Errorf("page carries no diary day link")
		}
		return nil
	}

	added, err := time.Parse("2 Jan 2006", strings.TrimSpace(dateLinks.Text()))
	if err != nil {
		return fmt.Errorf("page carries no added date: %w", err)
	}
	v.Date = added
	return nil
}

// parseRating reads the half-star score out of the rating badge's
// "rated-large-N" class, 0 when the member left the viewing unrated.
func parseRating(doc *goquery.Document) int {
	classes := doc.Find("span.rating-large").First().AttrOr("class", "")
	for _, class := range strings.Fields(classes) {
		value, ok := strings.CutPrefix(class, "rated-large-")
		if !ok {
			continue
		}
		rating, err := strconv.Atoi(value)
		if err == nil {
			return rating
		}
	}
	return 0
}

func hasSpoilerNotice(doc *goquery.Document) bool {
	found := false
	doc.Find("div.review em").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "may contain spoilers") {
			found = true
			return false
		}
		return true
	})
	return found
}

// reviewText flattens the review body: paragraphs separated by blank
// lines, explicit line breaks kept.
func reviewText(body *goquery.Selection) string {
	var paragraphs []string
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		var b strings.Builder
		p.Contents().Each(func(_ int, node *goquery.Selection) {
			if goquery.NodeName(node) == "br" {
				b.WriteString("\n")
				return
			}
			b.WriteString(node.Text())
		})
		paragraphs = append(paragraphs, b.String())
	})
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// fetchLiked reads whether the member liked the film off the film's
// activity feed; the viewing page itself does not say.
func (c *Client) fetchLiked(ctx context.Context, v *Viewing) error {
	doc, err := c.Core.GetDocument(ctx, v.Username+"/film/"+v.FilmSlug+"/activity/")
	if err != nil {
		return err
	}

	likedRegex := regexp.MustCompile(`liked(?: and rated)? ` + regexp.QuoteMeta(v.FilmName))
	doc.Find("p.activity-summary").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		summary := strings.Join(strings.Fields(s.Text()), " ")
		if likedRegex.MatchString(summary) {
			v.Liked = true
			return false
		}
		return true
	})
	return nil
}

// fetchOwnReview replaces the rendered review with the source text the
// edit form holds, which is what Save must send back.
func (c *Client) fetchOwnReview(ctx context.Context, v *Viewing) error {
	res, err := c.Core.Do(ctx, core.Request{
		Method: resty.MethodGet,
		Path:   fmt.Sprintf("csi/viewing/%d/sidebar-user-actions/", v.ViewingId),
		Query:  map[string]string{"esiAllowUser": "true"},
	})
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body))
	if err != nil {
		return err
	}

	button := doc.Find("a.edit-review-button").First()
	if button.Length() == 0 {
		// no edit form on the sidebar means no review to round-trip;
		// keep whatever the page rendered
		if v.Review != "" {
			c.api.ReportWarning("viewing.review-source",
				"edit form missing for own review", v.Path())
		}
		return nil
	}
	v.Review = letterboxd.DecodeXMLRefs(button.AttrOr("data-review-text", ""))
	return nil
}
