package letterboxd

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/ratings"
)

func TestParseShortNum(t *testing.T) {
	cases := []struct {
		text   string
		expect int64
	}{
		{text: "831", expect: 831},
		{text: "1,204", expect: 1204},
		{text: "  2,430,502  ", expect: 2430502},
		{text: "12K", expect: 12000},
		{text: "15.3K", expect: 15300},
		{text: "1.2M", expect: 1200000},
		{text: "0", expect: 0},
	}
	for _, test := range cases {
		num, err := ParseShortNum(test.text)
		require.NoError(t, err)
		require.Equal(t, test.expect, num, "text %q", test.text)
	}

	_, err := ParseShortNum("n/a")
	require.Error(t, err)
}

func TestFormatShortNum(t *testing.T) {
	cases := []struct {
		num    int64
		expect string
	}{
		{num: 0, expect: "0"},
		{num: 831, expect: "831"},
		{num: 1000, expect: "1.0k"},
		{num: 15300, expect: "15.3k"},
		{num: 112000, expect: "112k"},
		{num: 1500000, expect: "1.5m"},
		{num: 44000000, expect: "44m"},
		{num: 2000000000, expect: "2.0b"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, FormatShortNum(test.num), "num %d", test.num)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		text   string
		expect string
	}{
		{text: "Fun MoviE-posters!", expect: "fun-movie-posters"},
		{text: "The Matrix", expect: "the-matrix"},
		{text: "Alien: Covenant", expect: "alien:-covenant"},
		{text: "What's Up, Doc?", expect: "whats-up-doc"},
		{text: "2001", expect: "2001"},
	}
	for _, test := range cases {
		slug, err := Slugify(test.text)
		require.NoError(t, err)
		require.Equal(t, test.expect, slug, "text %q", test.text)
	}

	_, err := Slugify("!!!")
	var validation core.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFormatRuntime(t *testing.T) {
	cases := []struct {
		mins   int
		expect string
	}{
		{mins: 134, expect: "2hrs 14mins"},
		{mins: 61, expect: "1hr 1min"},
		{mins: 90, expect: "1hr 30mins"},
		{mins: 45, expect: "0hrs 45mins"},
		{mins: 120, expect: "2hrs 0mins"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, FormatRuntime(test.mins))
	}
}

func TestDecodeXMLRefs(t *testing.T) {
	require.Equal(t, `Tom & Jerry <3 "forever"`,
		DecodeXMLRefs(`Tom &amp; Jerry &lt;3 &quot;forever&quot;`))
	require.Equal(t, "it's > it", DecodeXMLRefs("it&apos;s &gt; it"))
	require.Equal(t, "plain text", DecodeXMLRefs("plain text"))
}

func TestPrettyName(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
		<h1 class="title-1 prettify">Crime films of the 90s
			<span> a list by someone</span>
		</h1>
		</body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Crime films of the 90s", PrettyName(doc))

	empty, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><h1>No prettify here</h1></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "", PrettyName(empty))
}

func TestParseHistogram(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="rating-histogram clear rating-histogram-exploded"><ul>
		<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="1,234 half-★ ratings (2%)">half-★</a></li>
		<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="No ★ ratings"></a></li>
		<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="56 ★★★½ ratings (1%)">★★★½</a></li>
		<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="789 ★★★★ ratings (9%)">★★★★</a></li>
		<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="12 ★★★★★ ratings (0%)">★★★★★</a></li>
		</ul></div>`))
	require.NoError(t, err)

	// half-★ must not register as ★, ★★★★ must not register as ★★★,
	// and the unrated bar stays absent
	require.Equal(t,
		ratings.Histogram{1: 1234, 7: 56, 8: 789, 10: 12},
		ParseHistogram(doc))
}
