// Package textutil holds the small text transforms shared by the page
// scrapers: slug prettifying and lookup normalization.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases text and collapses whitespace runs to single
// spaces, for loose comparisons between site text and user input.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return whitespaceRegex.ReplaceAllString(text, " ")
}

// TitleCase uppercases the letter starting every word, where a word
// begins after any non-letter: "science-fiction" -> "Science-Fiction".
func TitleCase(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	prevLetter := false
	for _, c := range text {
		switch {
		case !unicode.IsLetter(c):
			b.WriteRune(c)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(c))
		default:
			b.WriteRune(unicode.ToUpper(c))
			prevLetter = true
		}
	}
	return b.String()
}

// SlugToName renders a path slug as a display name,
// "tommy-wiseau" -> "Tommy Wiseau".
func SlugToName(slug string) string {
	return TitleCase(strings.ReplaceAll(strings.Trim(slug, "/"), "-", " "))
}
