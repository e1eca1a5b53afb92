// Package letterboxd holds helpers shared by every page scraper:
// shorthand number parsing, slug construction and the small text
// conventions the site uses across otherwise unrelated pages.
package letterboxd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"lunaboxd/lib/scrapers/letterboxd/core"
)

// ParseShortNum converts the site's shorthand display numbers into
// integers, e.g. "15.3K" -> 15300 and "1,204" -> 1204. Only uppercase
// K and M suffixes appear on the site.
func ParseShortNum(text string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse shorthand number %q: %w", text, err)
	}
	return int64(value * float64(multiplier)), nil
}

// FormatShortNum renders an integer the way the site abbreviates large
// counts, e.g. 15300 -> "15.3k".
func FormatShortNum(num int64) string {
	format := func(value float64, suffix string) string {
		if value < 10 {
			return fmt.Sprintf("%.1f%s", value, suffix)
		}
		return fmt.Sprintf("%.0f%s", value, suffix)
	}
	switch {
	case num >= 1_000_000_000:
		return format(float64(num)/1_000_000_000, "b")
	case num >= 1_000_000:
		return format(float64(num)/1_000_000, "m")
	case num >= 1_000:
		return format(float64(num)/1_000, "k")
	}
	return strconv.FormatInt(num, 10)
}

// Slugify turns free text into the path slug form the site uses, e.g.
// "Fun MoviE-posters!" -> "fun-movie-posters".
func Slugify(text string) (string, error) {
	var kept strings.Builder
	for _, c := range strings.ToLower(text) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsSpace(c) || c == '-' || c == ':' {
			kept.WriteRune(c)
		}
	}
	slug := strings.ReplaceAll(kept.String(), " ", "-")
	slug = strings.ReplaceAll(slug, "--", "-")

	if slug == "" {
		return "", core.ValidationError{Reason: fmt.Sprintf("cannot build a slug out of %q", text)}
	}
	return slug, nil
}

// FormatRuntime renders minutes in the site's runtime style, e.g.
// 134 -> "2hrs 14mins".
func FormatRuntime(mins int) string {
	hours := mins / 60
	mins = mins % 60

	hourUnit := "hrs"
	if hours == 1 {
		hourUnit = "hr"
	}
	minUnit := "mins"
	if mins == 1 {
		minUnit = "min"
	}
	return fmt.Sprintf("%d%s %d%s", hours, hourUnit, mins, minUnit)
}

// xmlRefs covers the five entity references the site leaves encoded in
// attribute payloads like data-review-text.
var xmlRefs = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// DecodeXMLRefs resolves the site's XML character references.
func DecodeXMLRefs(text string) string {
	return xmlRefs.Replace(text)
}

// PrettyName extracts the display title from pages that carry one in
// their "prettify" heading, with the trailing ownership span removed.
// Empty when the page has no such heading.
func PrettyName(doc *goquery.Document) string {
	title := doc.Find("h1.title-1.prettify").First()
	if title.Length() == 0 {
		return ""
	}
	name := title.Text()
	if span := title.Find("span").First().Text(); span != "" {
		name = strings.Replace(name, span, "", 1)
	}
	return strings.TrimSpace(name)
}
