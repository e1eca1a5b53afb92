package viewing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/scrapers/letterboxd/core"
)

const savePath = "s/save-diary-entry"

// Save writes a viewing through the diary form. A zero ViewingId
// creates a new viewing for the film; a set one edits that viewing.
// Only the session user's own viewings can be saved.
func (c *Client) Save(ctx context.Context, v *Viewing) error {
	ctx, span := tracer.Start(ctx, "viewing:Save")
	defer span.End()

	if v.FilmId <= 0 {
		return core.ValidationError{Reason: "viewing carries no film id"}
	}
	if v.Rating < 0 || v.Rating > 10 {
		return core.ValidationError{
			Reason: fmt.Sprintf("rating %d is not in the valid range 0-10 half-star units", v.Rating),
		}
	}
	if v.DateSpecified && v.Date.IsZero() {
		return core.ValidationError{Reason: "diary entries need a watched-on date"}
	}
	span.SetAttributes(
		attribute.Int64("viewing_id", v.ViewingId),
		attribute.Int64("film_id", v.FilmId),
	)

	form := map[string]string{
		"filmId":           strconv.FormatInt(v.FilmId, 10),
		"specifiedDate":    strconv.FormatBool(v.DateSpecified),
		"review":           v.Review,
		"containsSpoilers": strconv.FormatBool(v.ContainsSpoilers),
		"rewatch":          strconv.FormatBool(v.Rewatch),
		"rating":           strconv.Itoa(v.Rating),
		"liked":            strconv.FormatBool(v.Liked),
	}
	if v.ViewingId > 0 {
		form["viewingId"] = strconv.FormatInt(v.ViewingId, 10)
	}
	if v.DateSpecified {
		form["viewingDateStr"] = v.Date.Format("2006-01-02")
	}
	tags := url.Values{}
	for _, tag := range v.Tags {
		tags.Add("tag", tag)
	}

	_, err := c.Core.Do(ctx, core.Request{
		Method:   resty.MethodPost,
		Path:     savePath,
		Form:     form,
		FormList: tags,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save viewing")
		return fmt.Errorf("save viewing of film %d: %w", v.FilmId, err)
	}
	return nil
}

// ReplaceTags rewrites a viewing's tags: every tag in find is dropped,
// and when at least one was present, the replacements are appended. A
// viewing carrying none of the find tags is left untouched. Returns
// the viewing as saved.
func (c *Client) ReplaceTags(ctx context.Context, path string, find []string, replace []string) (*Viewing, error) {
	ctx, span := tracer.Start(ctx, "viewing:ReplaceTags")
	defer span.End()

	v, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(find))
	for _, tag := range find {
		drop[tag] = true
	}
	var kept []string
	changed := false
	for _, tag := range v.Tags {
		if drop[tag] {
			changed = true
			continue
		}
		kept = append(kept, tag)
	}
	if !changed {
		span.AddEvent("no tags to replace")
		return v, nil
	}

	v.Tags = append(kept, replace...)
	err = c.Save(ctx, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save replaced tags")
		return nil, err
	}
	return v, nil
}

// Unlike withdraws the session user's like from a review. There is no
// matching Like: the site gates likes behind a captcha.
func (c *Client) Unlike(ctx context.Context, viewingId int64) error {
	ctx, span := tracer.Start(ctx, "viewing:Unlike")
	defer span.End()
	span.SetAttributes(attribute.Int64("viewing_id", viewingId))

	_, err := c.Core.PostForm(ctx,
		fmt.Sprintf("s/viewing:%d/like", viewingId),
		map[string]string{
			"liked":            "false",
			"gRecaptchaAction": "viewing_like",
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unlike viewing")
		return fmt.Errorf("unlike viewing %d: %w", viewingId, err)
	}
	return nil
}

// Comment posts a reply under a review.
func (c *Client) Comment(ctx context.Context, viewingId int64, comment string) error {
	ctx, span := tracer.Start(ctx, "viewing:Comment")
	defer span.End()
	span.SetAttributes(attribute.Int64("viewing_id", viewingId))

	if comment == "" {
		return core.ValidationError{Reason: "comment is empty"}
	}

	_, err := c.Core.PostForm(ctx,
		fmt.Sprintf("s/viewing:%d/add-comment", viewingId),
		map[string]string{"comment": comment})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post comment")
		return fmt.Errorf("comment on viewing %d: %w", viewingId, err)
	}
	return nil
}
