// Package htmlutil holds the document helpers shared by the page
// scrapers.
package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ScriptText returns the text of every <script> element in the
// document, concatenated in document order. Pages embed state like
// login flags, error codes and film metadata in inline scripts, so
// regex scans over this blob are a common extraction path.
func ScriptText(doc *goquery.Document) string {
	var buffer strings.Builder
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		buffer.WriteString(sel.Text())
		buffer.WriteString("\n")
	})
	return buffer.String()
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// NormalizeSpace strips non-printable runes, trims surrounding
// whitespace and collapses runs of inner whitespace to single spaces.
// Display text wrapped across source lines comes out single-line.
func NormalizeSpace(s string) string {
	var kept strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			kept.WriteRune(c)
		}
	}
	return innerWhitespace.ReplaceAllString(strings.TrimSpace(kept.String()), " ")
}
