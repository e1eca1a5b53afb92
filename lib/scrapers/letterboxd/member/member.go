// Package member scrapes member profiles: the profile card with its
// headline statistics and favourite films, the rating histogram, the
// social listings, and the per-member tag indexes.
package member

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/report"
	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/paginate"
	"lunaboxd/lib/scrapers/letterboxd/ratings"
)

var tracer = otel.Tracer("scrapers/letterboxd/member")

// Favourite is one of the up-to-four showcase films on a profile.
type Favourite struct {
	FilmId int64
	Name   string
}

// Stats are the headline counts across the top of a profile page.
type Stats struct {
	Films         int64
	FilmsThisYear int64
	Lists         int64
	Following     int64
	Followers     int64
}

// Member is everything a member's profile page exposes.
type Member struct {
	Username    string
	DisplayName string
	// Badge is the subscription tier shown next to the display name,
	// empty for free accounts.
	Badge      string
	Location   string
	Bio        string
	Stats      Stats
	Favourites []Favourite
	Histogram  ratings.Histogram
}

// RatingAverage is the member's plain mean rating in stars, rounded
// the way the site displays averages, zero for members who have rated
// nothing.
func (m *Member) RatingAverage() float64 {
	mean, ok := ratings.TrueMean(m.Histogram)
	if !ok {
		return 0
	}
	return math.Round(mean*100) / 100
}

// YearProjection extrapolates the films-this-year count to a full
// year's pace as of the given time.
func (m *Member) YearProjection(now time.Time) int64 {
	if m.Stats.FilmsThisYear == 0 {
		return 0
	}
	return m.Stats.FilmsThisYear * 365 / int64(now.YearDay())
}

// Client scrapes member profiles through an authenticated session.
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
		return nil, core.ValidationError{Reason: "member client requires a session"}
	}
	if opts.Report == nil {
		opts.Report = report.NoopAPI{}
	}
	return &Client{
		Core: opts.Core,
		api:  report.NewScopedAPI("letterboxd_member", opts.Report),
	}, nil
}

// Fetch scrapes one member's profile given their username. A username
// the site does not know surfaces as a not-found error.
func (c *Client) Fetch(ctx context.Context, username string) (*Member, error) {
	ctx, span := tracer.Start(ctx, "member:Fetch")
	defer span.End()

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("username", username))

	doc, err := c.Core.GetDocument(ctx, username+"/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile page")
		return nil, fmt.Errorf("member %q: %w", username, err)
	}

	member := &Member{Username: username}
	err = c.parseProfile(doc, member)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract profile attributes")
		return nil, fmt.Errorf("member %q: %w", username, err)
	}

	err = c.fetchRatingHistogram(ctx, member)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch rating fragment")
		return nil, err
	}
	return member, nil
}

// Self scrapes the session user's own profile.
func (c *Client) Self(ctx context.Context) (*Member, error) {
	return c.Fetch(ctx, c.Core.Username)
}

// normalizeUsername brings a username into the lowercase form the
// site's profile paths use.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", core.ValidationError{Reason: "username is empty"}
	}
	return username, nil
}

func (c *Client) parseProfile(doc *goquery.Document, member *Member) error {
	member.DisplayName = strings.TrimSpace(doc.Find("h1.title-1").First().Text())
	if member.DisplayName == "" {
		return fmt.Errorf("profile page carries no display name")
	}
	member.Badge = strings.TrimSpace(doc.Find("span.badge").First().Text())
	member.Location = strings.TrimSpace(doc.Find("span.metadatum span.label").First().Text())

	var paragraphs []string
	doc.Find("div.bio p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, s.Text())
	})
	member.Bio = strings.TrimSpace(strings.Join(paragraphs, "\n"))

	member.Stats = parseStats(doc)
	member.Favourites = c.parseFavourites(doc)
	return nil
}

func parseStats(doc *goquery.Document) Stats {
	var stats Stats
	doc.Find("h4.profile-statistic").Each(func(_ int, s *goquery.Selection) {
		value, err := letterboxd.ParseShortNum(s.Find("span.value").First().Text())
		if err != nil {
			return
		}
		switch strings.ToLower(strings.TrimSpace(s.Find("span.definition").First().Text())) {
		case "films":
			stats.Films = value
		case "this year":
			stats.FilmsThisYear = value
		case "lists":
			stats.Lists = value
		case "following":
			stats.Following = value
		case "followers":
			stats.Followers = value
		}
	})
	return stats
}

func (c *Client) parseFavourites(doc *goquery.Document) []Favourite {
	var favourites []Favourite
	doc.Find("section#favourites div[data-film-id]").Each(func(_ int, s *goquery.Selection) {
		id, err := strconv.ParseInt(s.AttrOr("data-film-id", ""), 10, 64)
		if err != nil {
			c.api.ReportWarning("member.favourites", "unreadable favourite film id", err)
			return
		}
		favourites = append(favourites, Favourite{
			FilmId: id,
			Name:   s.Find("img").First().AttrOr("alt", ""),
		})
	})
	return favourites
}

// fetchRatingHistogram pulls the member's histogram from its fragment
// endpoint. The profile page itself only carries an empty shell that
// the site fills in from the same fragment.
func (c *Client) fetchRatingHistogram(ctx context.Context, member *Member) error {
	doc, err := c.Core.GetDocument(ctx, "csi/"+member.Username+"/rating-histogram/")
	if err != nil {
		return err
	}
	member.Histogram = letterboxd.ParseHistogram(doc)
	return nil
}

// Following lists the usernames a member follows, in the site's order.
func (c *Client) Following(ctx context.Context, username string) ([]string, error) {
	return c.people(ctx, username, "following")
}

// Followers lists the usernames following a member, in the site's order.
func (c *Client) Followers(ctx context.Context, username string) ([]string, error) {
	return c.people(ctx, username, "followers")
}

// FollowersYouKnow lists a member's followers that the session user
// also follows.
func (c *Client) FollowersYouKnow(ctx context.Context, username string) ([]string, error) {
	return c.people(ctx, username, "followers-you-know")
}

// Mutuals lists the members the given member both follows and is
// followed by, in following order.
func (c *Client) Mutuals(ctx context.Context, username string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "member:Mutuals")
	defer span.End()

	following, err := c.Following(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list following")
		return nil, err
	}
	followers, err := c.Followers(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list followers")
		return nil, err
	}

	followedBy := make(map[string]bool, len(followers))
	for _, follower := range followers {
		followedBy[follower] = true
	}
	var mutuals []string
	for _, followed := range following {
		if followedBy[followed] {
			mutuals = append(mutuals, followed)
		}
	}
	return mutuals, nil
}

func (c *Client) people(ctx context.Context, username, listing string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "member:people")
	defer span.End()

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("listing", listing),
	)

	people, err := paginate.CollectSentinelLink(ctx, paginate.SentinelLink[string]{
		Fetch: func(ctx context.Context, page int) (*goquery.Document, error) {
			return c.Core.GetDocument(ctx, fmt.Sprintf("%s/%s/page/%d", username, listing, page))
		},
		Extract: extractPeople,
		Report:  c.api,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk people listing")
		return nil, fmt.Errorf("member %q %s: %w", username, listing, err)
	}
	return people, nil
}

// extractPeople pulls usernames out of one page of a people table.
func extractPeople(doc *goquery.Document) ([]string, error) {
	var people []string
	doc.Find("td.table-person").Each(func(_ int, s *goquery.Selection) {
		href := s.Find("a").First().AttrOr("href", "")
		if username := strings.Trim(href, "/"); username != "" {
			people = append(people, username)
		}
	})
	return people, nil
}
