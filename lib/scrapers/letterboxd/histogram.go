package letterboxd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lunaboxd/lib/scrapers/letterboxd/ratings"
)

// histogramTitleRegexes matches each score's link title in a rating
// histogram fragment, e.g. `123 ★★★ ratings (4%)`. The leading
// character class keeps ★★★ from matching inside ★★★★.
var histogramTitleRegexes = func() map[int]*regexp.Regexp {
	out := make(map[int]*regexp.Regexp, 10)
	for score := 1; score <= 10; score++ {
		stars, err := ratings.Stars(float64(score) / 2)
		if err != nil {
			panic(err)
		}
		out[score] = regexp.MustCompile(`[^★½-]` + regexp.QuoteMeta(stars) + ` rating`)
	}
	return out
}()

// ParseHistogram reads per-score rating counts out of a rating
// histogram fragment's bar links. Film pages and member profiles both
// serve their histograms through fragments with this markup. Bars
// without ratings title themselves "No ★★ ratings" and stay at zero.
func ParseHistogram(doc *goquery.Document) ratings.Histogram {
	h := ratings.Histogram{}
	doc.Find("a[title]").Each(func(_ int, s *goquery.Selection) {
		title := s.AttrOr("title", "")
		for score, re := range histogramTitleRegexes {
			if !re.MatchString(title) {
				continue
			}
			fields := strings.Fields(title)
			if len(fields) == 0 {
				continue
			}
			count, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
			if err != nil {
				continue
			}
			h[score] = count
		}
	})
	return h
}
