package film

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/core"
)

// action posts one of the film page's per-film actions, e.g.
// film/{slug}/add-to-watchlist/. Mutations invalidate the client's
// cached copy of the film.
func (c *Client) action(ctx context.Context, slug, action string, form map[string]string) error {
	ctx, span := tracer.Start(ctx, "film:action")
	defer span.End()
	span.SetAttributes(
		attribute.String("slug", slug),
		attribute.String("action", action),
	)

	slug, err := letterboxd.Slugify(slug)
	if err != nil {
		return err
	}

	_, err = c.Core.PostForm(ctx, "film/"+slug+"/"+action+"/", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action rejected")
		return fmt.Errorf("film %q %s: %w", slug, action, err)
	}

	if c.cache != nil {
		c.cache.Remove(slug)
	}
	return nil
}

// SetWatched marks the film as watched by the session user.
func (c *Client) SetWatched(ctx context.Context, slug string) error {
	return c.action(ctx, slug, "mark-as-watched", nil)
}

// SetNotWatched removes the session user's watched mark.
func (c *Client) SetNotWatched(ctx context.Context, slug string) error {
	return c.action(ctx, slug, "mark-as-not-watched", nil)
}

// AddToWatchlist puts the film on the session user's watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, slug string) error {
	return c.action(ctx, slug, "add-to-watchlist", nil)
}

// RemoveFromWatchlist takes the film off the session user's watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, slug string) error {
	return c.action(ctx, slug, "remove-from-watchlist", nil)
}

// Rate sets the session user's rating in half-star units, 1 (half a
// star) through 10 (five stars). Zero removes the rating. Out-of-range
// values fail before any network call.
func (c *Client) Rate(ctx context.Context, slug string, halfStars int) error {
	if halfStars < 0 || halfStars > 10 {
		return core.ValidationError{
			Reason: fmt.Sprintf("rating %d is not in the valid range 0-10 half-star units", halfStars),
		}
	}
	return c.action(ctx, slug, "rate", map[string]string{
		"rating": strconv.Itoa(halfStars),
	})
}

// RemoveRating clears the session user's rating of the film.
func (c *Client) RemoveRating(ctx context.Context, slug string) error {
	return c.Rate(ctx, slug, 0)
}

// AddToList appends a film to one of the session user's lists.
func (c *Client) AddToList(ctx context.Context, listId string, filmId int64) error {
	ctx, span := tracer.Start(ctx, "film:AddToList")
	defer span.End()

	_, err := c.Core.PostForm(ctx, "s/add-film-to-list", map[string]string{
		"filmId":     strconv.FormatInt(filmId, 10),
		"filmListId": listId,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add to list rejected")
		return err
	}
	return nil
}
