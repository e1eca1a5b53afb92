package member

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/telemetry"
)

const tagsFirstPageHtml = `<html><body>
<h1 class="title-1">Tags</h1>
<div class="pagination"><ul>
	<li class="paginate-page"><a href="#">1</a></li>
	<li class="paginate-page"><a href="#">2</a></li>
</ul></div>
<ul class="tags">
	<li><a href="/nia/tag/slow-cinema/diary/" class="tooltip" title="slow cinema">slow cinema&nbsp;<span>12</span></a></li>
	<li><a href="/nia/tag/rewatch/diary/" class="tooltip" title="rewatch">rewatch</a></li>
	<li><a href="#" class="clear-tags">clear</a></li>
</ul>
</body></html>`

const tagsSecondPageHtml = `<html><body>
<ul class="tags">
	<li><a href="/nia/tag/cinema-club/diary/" class="tooltip" title="cinema club">cinema club&nbsp;<span>3</span></a></li>
</ul>
</body></html>`

const noTagsHtml = `<html><body>
<section class="section"><h2 class="ui-block-heading">No diary tags yet</h2></section>
</body></html>`

func taggedPageHtml(next bool, hrefs ...string) string {
	html := ""
	for _, href := range hrefs {
		html += `<h3 class="headline-3 prettify"><a href="` + href + `">entry</a></h3>`
	}
	if next {
		html += `<div class="pagination"><a class="next" href="#">Next</a></div>`
	}
	return `<html><body>` + html + `</body></html>`
}

func TestTags(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/member")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tags/diary/page/1",
		httpmock.NewStringResponder(200, tagsFirstPageHtml))
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tags/diary/page/2",
		httpmock.NewStringResponder(200, tagsSecondPageHtml))

	tags, err := client.Tags(ctx, "nia", "diary")
	require.NoError(t, err)

	// the untitled "clear" link is skipped, the span-less tag counts
	// one use, and the final page is included
	require.Equal(t, []Tag{
		{Name: "slow cinema", Uses: 12},
		{Name: "rewatch", Uses: 1},
		{Name: "cinema club", Uses: 3},
	}, tags)
}

func TestTagsSingularCategory(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/member")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tags/reviews/page/1",
		httpmock.NewStringResponder(200, tagsSecondPageHtml))

	tags, err := client.Tags(ctx, "nia", "review")
	require.NoError(t, err)
	require.Equal(t, []Tag{{Name: "cinema club", Uses: 3}}, tags)
}

func TestTagsUnknownCategory(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/member")
	defer cleanup()

	client, transport := newTestClient(t)
	_, err := client.Tags(context.Background(), "nia", "watchlist")
	var validation core.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Zero(t, transport.GetTotalCallCount())
}

func TestTagsEmpty(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/member")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tags/lists/page/1",
		httpmock.NewStringResponder(200, noTagsHtml))

	tags, err := client.Tags(ctx, "nia", "lists")
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestTaggedViewings(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/member")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tag/slow-cinema/diary/page/1",
		httpmock.NewStringResponder(200, taggedPageHtml(true,
			"/nia/film/jeanne-dielman/", "/nia/film/stalker/1/")))
	transport.RegisterResponder("GET", testBaseUrl+"/nia/tag/slow-cinema/diary/page/2",
		httpmock.NewStringResponder(200, taggedPageHtml(false,
			"/nia/film/satantango/")))

	links, err := client.TaggedViewings(ctx, "nia", "diary", "Slow Cinema")
	require.NoError(t, err)
	require.Equal(t, []string{
		"/nia/film/jeanne-dielman/",
		"/nia/film/stalker/1/",
		"/nia/film/satantango/",
	}, links)
}
