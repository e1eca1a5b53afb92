package find

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/telemetry"
)

const testBaseUrl = "https://letterboxd.com"

const filmResultsHtml = `<html><body>
<ul class="results">
	<li class="search-result -production">
		<span class="film-title-wrapper"><a href="/film/avenger-dogs/">Avenger Dogs <small class="metadata"><a href="/films/year/2019/">2019</a></small></a></span>
	</li>
	<li class="search-result -production">
		<span class="film-title-wrapper"><a href="/film/avenger-dogs-2-wonder-dogs/">Avenger Dogs 2: Wonder Dogs <small class="metadata"><a href="/films/year/2021/">2021</a></small></a></span>
	</li>
	<li class="search-result -production">
		<span class="film-title-wrapper"><a href="/film/revenger-cats/">Revenger Cats</a></span>
	</li>
</ul>
</body></html>`

const memberResultsHtml = `<html><body>
<ul class="results">
	<li class="search-result -person">
		<h3 class="title-3"><a class="name" href="/lucindaj/">Lucinda Johnson</a></h3>
	</li>
	<li class="search-result -person">
		<h3 class="title-3"><a class="name" href="/lucy-j/">lucy j</a></h3>
	</li>
</ul>
</body></html>`

const listResultsHtml = `<html><body>
<ul class="results">
	<li class="search-result -list">
		<section class="list -overlapped" data-person="nia">
			<a href="/nia/list/essential-slow-cinema/" class="list-link">x</a>
			<h2 class="title-2 prettify"><a href="/nia/list/essential-slow-cinema/">Essential Slow Cinema</a></h2>
		</section>
	</li>
</ul>
</body></html>`

const tagResultsHtml = `<html><body>
<ul class="results">
	<li class="search-result -tag"><h2 class="title-2"><a href="/tag/slow-cinema/films/">slow cinema</a></h2></li>
	<li class="search-result -tag"><h2 class="title-2"><a href="/tag/cinema/films/">cinema</a></h2></li>
</ul>
</body></html>`

const notFoundHtml = `<!DOCTYPE html>
<html><head><title>Letterboxd - Not Found</title></head>
<body class="error message-dark">
<section class="section"><h1>Sorry, we can&#8217;t find the page you&#8217;ve requested.</h1></section>
<script>
var pageType = '/errors/not_found';
</script>
</body></html>`

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()

	session, err := core.New(context.Background(), core.Options{
		Username:          "testuser",
		Password:          "hunter2",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	session.Http.GetClient().Transport = transport

	client, err := New(Options{Core: session})
	require.NoError(t, err)
	return client, transport
}

func TestSearchFilms(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/films/avenger%20dogs/page/1",
		httpmock.NewStringResponder(200, filmResultsHtml))

	results, err := client.Search(ctx, Films, "avenger dogs", NoLimit)
	require.NoError(t, err)
	require.Equal(t, []Result{
		{Category: Films, Name: "Avenger Dogs", Slug: "avenger-dogs"},
		{Category: Films, Name: "Avenger Dogs 2: Wonder Dogs", Slug: "avenger-dogs-2-wonder-dogs"},
		{Category: Films, Name: "Revenger Cats", Slug: "revenger-cats"},
	}, results)
}

func TestSearchLimit(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/films/avenger%20dogs/page/1",
		httpmock.NewStringResponder(200, filmResultsHtml))

	results, err := client.Search(ctx, Films, "avenger dogs", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Avenger Dogs", results[0].Name)
}

func TestSearchMembers(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/members/lucinda/page/1",
		httpmock.NewStringResponder(200, memberResultsHtml))

	results, err := client.Search(ctx, Members, "lucinda", NoLimit)
	require.NoError(t, err)
	require.Equal(t, []Result{
		{Category: Members, Name: "Lucinda Johnson", Slug: "lucindaj"},
		{Category: Members, Name: "lucy j", Slug: "lucy-j"},
	}, results)
}

func TestSearchLists(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/lists/slow%20cinema/page/1",
		httpmock.NewStringResponder(200, listResultsHtml))

	results, err := client.Search(ctx, Lists, "slow cinema", NoLimit)
	require.NoError(t, err)
	require.Equal(t, []Result{{
		Category: Lists,
		Name:     "Essential Slow Cinema",
		Slug:     "nia/list/essential-slow-cinema",
		Owner:    "nia",
	}}, results)
}

func TestSearchTags(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/tags/cinema/page/1",
		httpmock.NewStringResponder(200, tagResultsHtml))

	results, err := client.Search(ctx, Tags, "cinema", NoLimit)
	require.NoError(t, err)
	require.Equal(t, []Result{
		{Category: Tags, Name: "slow cinema", Slug: "slow-cinema"},
		{Category: Tags, Name: "cinema", Slug: "cinema"},
	}, results)
}

func TestSearchNoResults(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/search/films/xyzzy/page/1",
		httpmock.NewStringResponder(404, notFoundHtml))

	results, err := client.Search(ctx, Films, "xyzzy", NoLimit)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchUnknownCategory(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/find")
	defer cleanup()

	client, transport := newTestClient(t)
	_, err := client.Search(context.Background(), Category("reviews"), "anything", NoLimit)
	var validation core.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Zero(t, transport.GetTotalCallCount())
}

func TestBestMatch(t *testing.T) {
	results := []Result{
		{Category: Films, Name: "Avenger Dogs 2: Wonder Dogs", Slug: "avenger-dogs-2-wonder-dogs"},
		{Category: Films, Name: "Avenger Dogs", Slug: "avenger-dogs"},
		{Category: Films, Name: "Revenger Cats", Slug: "revenger-cats"},
	}

	best, similarity, ok := BestMatch("Avenger  DOGS", results)
	require.True(t, ok)
	require.Equal(t, "avenger-dogs", best.Slug)
	require.InDelta(t, 1.0, similarity, 1e-9)

	_, _, ok = BestMatch("anything", nil)
	require.False(t, ok)
}
