// Package ratings holds the numeric rating aggregation used by film
// and member scrapers: true means, Bayesian-smoothed scores, joke
// rating detection, and the star glyph conventions of the site.
package ratings

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"lunaboxd/lib/scrapers/letterboxd/core"
)

const (
	// Star and HalfStar are the glyphs the site renders ratings with.
	Star     = "★"
	HalfStar = "½"
	// HalfStarOnly is what the site uses for a lone half star instead
	// of the half glyph.
	HalfStarOnly = "half-★"

	// MiddleRating is the midpoint of the valid rating range
	// (0.5..5.0), used as the neutral fallback for unrated entities.
	MiddleRating = 2.75

	// DefaultPseudoCount is the Beta prior weight for BayesianScore.
	DefaultPseudoCount = 9

	// DefaultIronicMinimum is how many ratings each extreme needs
	// before IsIronic will flag a histogram.
	DefaultIronicMinimum = 3
)

// Histogram counts ratings per discrete score in half-star units,
// 1 (half a star) through 10 (five stars). Absent keys count zero.
type Histogram map[int]int

// Counts returns the per-score counts in score order: index i holds
// the count for score i+1. Keys outside 1..10 are dropped.
func (h Histogram) Counts() [10]int {
	var counts [10]int
	for score, count := range h {
		if score >= 1 && score <= 10 {
			counts[score-1] = count
		}
	}
	return counts
}

// Total returns the number of ratings in the histogram.
func (h Histogram) Total() int {
	total := 0
	for _, count := range h.Counts() {
		total += count
	}
	return total
}

// TrueMean returns the plain mean rating in star units (0.5..5.0). The
// second return is false when the histogram is empty: no ratings means
// no mean, not a mean of zero.
func TrueMean(h Histogram) (float64, bool) {
	score, total := 0, 0
	for i, count := range h.Counts() {
		score += (i + 1) * count
		total += count
	}
	if total == 0 {
		return 0, false
	}
	return float64(score) / float64(total) * 0.5, true
}

// BayesianScore returns a conservative lower-bound rating estimate in
// star units. Each rating is projected onto [0,1], the counts feed a
// Beta posterior with `pseudoCount` prior weight on both sides, and
// the 5th percentile of that posterior is rescaled onto [0.5,5.0].
// Entities with few ratings land near the prior instead of at the
// extremes their small samples would suggest. An empty histogram
// returns `fallback`.
func BayesianScore(h Histogram, pseudoCount, fallback float64) float64 {
	if h.Total() == 0 {
		return fallback
	}

	var up, down float64
	for i, count := range h.Counts() {
		c := float64(count)
		up += c * float64(i) / 9
		down += c * float64(9-i) / 9
	}

	dist := distuv.Beta{Alpha: up + pseudoCount, Beta: down + pseudoCount}
	return dist.Quantile(0.05)*4.5 + 0.5
}

// topTwo returns the two most frequent scores. The scan is ascending
// with a strict comparison, so the lowest score wins ties.
func topTwo(h Histogram) (first, second int) {
	firstCount, secondCount := -1, -1
	for i, count := range h.Counts() {
		score := i + 1
		switch {
		case count > firstCount:
			second, secondCount = first, firstCount
			first, firstCount = score, count
		case count > secondCount:
			second, secondCount = score, count
		}
	}
	return first, second
}

// IsIronic reports a suspected joke rating pattern: the two most
// frequent scores are exactly the two extremes (half a star and five
// stars) and each extreme has at least `minimumEach` ratings.
func IsIronic(h Histogram, minimumEach int) bool {
	first, second := topTwo(h)
	lo, hi := first, second
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo == 1 && hi == 10 && h[1] >= minimumEach && h[10] >= minimumEach
}

// Stars renders a star-unit rating the way the site does, e.g.
// 3.5 -> "★★★½". A lone half star renders as HalfStarOnly.
func Stars(num float64) (string, error) {
	if num == 0.5 {
		return HalfStarOnly, nil
	}

	units := int(num * 2)
	if float64(units) != num*2 || units < 1 || units > 10 {
		return "", core.ValidationError{
			Reason: fmt.Sprintf("rating %v is not in the valid range 0.5-5.0 in half-star steps", num),
		}
	}

	return strings.Repeat(Star, units/2) + strings.Repeat(HalfStar, units%2), nil
}

// ParseStars converts a star glyph rating back to its numeric value,
// e.g. "★★★½" -> 3.5.
func ParseStars(stars string) (float64, error) {
	if stars == HalfStarOnly {
		return 0.5, nil
	}

	value := 0.0
	for _, c := range strings.TrimSpace(stars) {
		switch string(c) {
		case Star:
			value += 1
		case HalfStar:
			value += 0.5
		default:
			return 0, core.ValidationError{
				Reason: fmt.Sprintf("invalid rating glyph %q", string(c)),
			}
		}
	}

	units := int(value * 2)
	if units < 1 || units > 10 {
		return 0, core.ValidationError{
			Reason: fmt.Sprintf("rating %q is not in the valid range 0.5-5.0 stars", stars),
		}
	}
	return value, nil
}
