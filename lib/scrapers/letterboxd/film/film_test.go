package film

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/scrapers/letterboxd/ratings"
	"lunaboxd/lib/telemetry"
)

const testBaseUrl = "https://letterboxd.com"

const filmPageHtml = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
/* <![CDATA[ */
{"image":"https://a.ltrbxd.com/resized/film-poster/2/0/2/0/5/black-swan-0-230-0-345-crop.jpg?v=ab12cd34","@type":"Movie"}
/* ]]> */
</script>
</head>
<body>
<div id="backdrop" data-backdrop="https://a.ltrbxd.com/resized/sm/upload/backdrop.jpg"></div>
<div id="film-page-wrapper">
	<div class="film-poster" data-film-id="41235"></div>
	<h1 class="headline-1 filmtitle">Black Swan</h1>
	<div class="review body-text -prose -hero prettify">
		<div class="truncate"><p>A ballerina&#8217;s dream role becomes a nightmare.</p></div>
	</div>
	<div id="tab-genres">
		<a class="text-slug" href="/films/genre/thriller/">Thriller</a>
		<a class="text-slug" href="/films/genre/drama/">Drama</a>
	</div>
	<div id="tab-details">
		<h3><span>Studios</span></h3>
		<a href="/studio/fox-searchlight-pictures/">Fox Searchlight Pictures</a>
		<h3><span>Country</span></h3>
		<a href="/films/country/usa/">USA</a>
		<h3><span>Languages</span></h3>
		<a href="/films/language/english/">English</a>
		<a href="/films/language/english/">English</a>
		<a href="/films/language/french/">French</a>
		<h3><span>Alternative Titles</span></h3>
		<div class="text-indentedlist"><p>Cisne Negro, Der schwarze Schwan</p></div>
	</div>
	<div id="tab-crew">
		<a href="/director/darren-aronofsky/">Darren Aronofsky</a>
		<a href="/producer/scott-franklin/">Scott Franklin</a>
		<a href="/writer/mark-heyman/">Mark Heyman</a>
	</div>
	<div id="tab-cast">
		<div class="cast-list"><a href="/actor/natalie-portman/">Natalie Portman</a><a href="/actor/mila-kunis/">Mila Kunis</a></div>
	</div>
	<p class="text-link text-footer">108 mins &nbsp; More at <a>IMDB</a></p>
	<input type="text" id="url-field-41235" value="https://boxd.it/dWUy" />
</div>
<script>
var filmData = { id: 41235, name: "Black Swan", releaseYear: "2010", posterURL: "/film/black-swan/image-150/", path: "/film/black-swan/" };
</script>
</body></html>`

const filmStatsHtml = `<ul class="film-stats">
	<li class="stat"><a href="/film/black-swan/members/" class="has-icon icon-watched icon-16 tooltip" title="Watched by 2,430,502 members">2.4m</a></li>
	<li class="stat"><a href="/film/black-swan/lists/" class="has-icon icon-list icon-16 tooltip" title="Appears in 112,383 lists">112k</a></li>
	<li class="stat"><a href="/film/black-swan/likes/" class="has-icon icon-like icon-liked icon-16 tooltip" title="Liked by 912,388 members">912k</a></li>
</ul>`

const filmRatingHtml = `<section class="section ratings-histogram-chart">
<h2 class="section-heading"><a href="/film/black-swan/ratings/">Ratings</a>
<span class="average-rating"><a href="/film/black-swan/ratings/" class="tooltip display-rating" title="Weighted average of 3.92 based on 1,020,301 ratings">3.9</a></span></h2>
<div class="rating-histogram clear rating-histogram-exploded"><ul>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="12,108 half-★ ratings (2%)">half-★</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="8,342 ★ ratings (1%)">★</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="10,404 ★½ ratings (2%)">★½</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="44,000 ★★ ratings (6%)">★★</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="30,122 ★★½ ratings (4%)">★★½</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="170,508 ★★★ ratings (18%)">★★★</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="120,302 ★★★½ ratings (13%)">★★★½</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="250,777 ★★★★ ratings (27%)">★★★★</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="111,121 ★★★★½ ratings (12%)">★★★★½</a></li>
	<li class="rating-histogram-bar"><a href="#" class="ir tooltip" title="140,340 ★★★★★ ratings (15%)">★★★★★</a></li>
</ul></div>
<a href="/film/black-swan/fans/" class="all-link more-link">44K fans</a>
</section>`

const filmFriendActivityHtml = `<section class="activity-from-friends">
<ul class="avatar-groups">
	<li><span class="rating -micro -darker rated-8">★★★★</span></li>
	<li><span class="rating -micro -darker rated-9">★★★★½</span></li>
	<li><span class="rating -micro -darker rated-8">★★★★</span></li>
	<li><span class="rating -micro -darker rated-2">★</span></li>
</ul>
</section>`

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

func registerFilmPages(transport *httpmock.MockTransport, slug string) {
	transport.RegisterResponder("GET", testBaseUrl+"/film/"+slug+"/",
		httpmock.NewStringResponder(200, filmPageHtml))
	transport.RegisterResponder("GET", testBaseUrl+"/esi/film/"+slug+"/stats",
		httpmock.NewStringResponder(200, filmStatsHtml))
	transport.RegisterResponder("GET", testBaseUrl+"/csi/film/"+slug+"/rating-histogram/",
		httpmock.NewStringResponder(200, filmRatingHtml))
	transport.RegisterResponderWithQuery("GET",
		testBaseUrl+"/csi/film/"+slug+"/friend-activity/", "esiAllowUser=true",
		httpmock.NewStringResponder(200, filmFriendActivityHtml))
}

func TestFetch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	registerFilmPages(transport, "black-swan")

	film, err := client.Fetch(ctx, "Black Swan")
	require.NoError(t, err)

	require.Equal(t, "black-swan", film.Slug)
	require.Equal(t, int64(41235), film.Id)
	require.Equal(t, "https://boxd.it/dWUy", film.ShortLink)
	require.Equal(t, "dWUy", film.Uri())
	require.Equal(t, "Black Swan", film.Name)
	require.Equal(t, "Black Swan", film.PrettyName)
	require.Equal(t, 2010, film.Year)
	require.Equal(t, []string{"Drama", "Thriller"}, film.Genres)
	require.Equal(t, 108, film.RuntimeMins)
	require.False(t, film.IsShort())
	require.Equal(t, "A ballerina’s dream role becomes a nightmare.", film.Description)
	require.Equal(t, []string{"english", "french"}, film.Languages)
	require.Equal(t, []string{"usa"}, film.Regions)
	require.Equal(t, []string{"fox-searchlight-pictures"}, film.Studios)
	require.Equal(t, map[string][]string{
		"Director": {"Darren Aronofsky"},
		"Producer": {"Scott Franklin"},
		"Writer":   {"Mark Heyman"},
	}, film.Crew)
	require.Equal(t, []string{"Natalie Portman", "Mila Kunis"}, film.Cast)
	require.Equal(t, []string{"Cisne Negro", "Der schwarze Schwan"}, film.AlternativeTitles)
	require.Equal(t,
		"https://a.ltrbxd.com/resized/film-poster/2/0/2/0/5/black-swan-0-230-0-345-crop.jpg?v=ab12cd34",
		film.PosterUrl)
	require.Equal(t, "https://a.ltrbxd.com/resized/sm/upload/backdrop.jpg", film.BannerUrl)

	require.Equal(t, int64(2430502), film.Watches)
	require.Equal(t, int64(112383), film.Lists)
	require.Equal(t, int64(912388), film.Likes)
	require.Equal(t, int64(44000), film.Fans)

	require.Equal(t, ratings.Histogram{
		1: 12108, 2: 8342, 3: 10404, 4: 44000, 5: 30122,
		6: 170508, 7: 120302, 8: 250777, 9: 111121, 10: 140340,
	}, film.Histogram)
	require.True(t, film.HasWeightedAverage)
	require.Equal(t, 3.92, film.WeightedAverage)
	require.Equal(t, ratings.Histogram{2: 1, 8: 2, 9: 1}, film.FriendHistogram)

	mean, ok := film.TrueMean()
	require.True(t, ok)
	require.InDelta(t, 3.709, mean, 0.01)
	require.False(t, film.IsIronic())
	friendScore, ok := film.FriendBayesianScore()
	require.True(t, ok)
	require.Greater(t, friendScore, 0.5)
}

func TestFetchServesCache(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	registerFilmPages(transport, "black-swan")

	first, err := client.Fetch(ctx, "black-swan")
	require.NoError(t, err)
	calls := transport.GetTotalCallCount()

	second, err := client.Fetch(ctx, "black-swan")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, calls, transport.GetTotalCallCount())
}

func TestFetchByIdFollowsRedirect(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	registerFilmPages(transport, "black-swan")
	transport.RegisterResponder("GET", testBaseUrl+"/film/film:41235/",
		func(req *http.Request) (*http.Response, error) {
			res := httpmock.NewStringResponse(302, "")
			res.Header.Set("Location", testBaseUrl+"/film/black-swan/")
			return res, nil
		})

	film, err := client.FetchById(ctx, 41235)
	require.NoError(t, err)
	require.Equal(t, "black-swan", film.Slug)

	// cached under both the requested and the canonical slug
	calls := transport.GetTotalCallCount()
	again, err := client.Fetch(ctx, "black-swan")
	require.NoError(t, err)
	require.Same(t, film, again)
	require.Equal(t, calls, transport.GetTotalCallCount())
}

func TestFetchMissingFilm(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBaseUrl+"/film/nope/",
		httpmock.NewStringResponder(404, `<html><body class="error">
			<script>var pageType = '/errors/not_found';</script></body></html>`))

	_, err := client.Fetch(ctx, "nope")
	var notFound core.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestActions(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	var form map[string][]string
	responder := func(req *http.Request) (*http.Response, error) {
		err := req.ParseForm()
		if err != nil {
			return nil, err
		}
		form = req.PostForm
		return httpmock.NewStringResponse(200, `{"result": true}`), nil
	}
	transport.RegisterResponder("POST", testBaseUrl+"/film/black-swan/add-to-watchlist/", responder)
	transport.RegisterResponder("POST", testBaseUrl+"/film/black-swan/rate/", responder)
	transport.RegisterResponder("POST", testBaseUrl+"/s/add-film-to-list", responder)

	require.NoError(t, client.AddToWatchlist(ctx, "black-swan"))

	require.NoError(t, client.Rate(ctx, "black-swan", 7))
	require.Equal(t, []string{"7"}, form["rating"])
	require.NoError(t, client.RemoveRating(ctx, "black-swan"))
	require.Equal(t, []string{"0"}, form["rating"])

	require.NoError(t, client.AddToList(ctx, "110504", 41235))
	require.Equal(t, []string{"41235"}, form["filmId"])
	require.Equal(t, []string{"110504"}, form["filmListId"])
}

func TestRateValidatesRange(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)

	for _, invalid := range []int{-1, 11, 100} {
		err := client.Rate(ctx, "black-swan", invalid)
		var validation core.ValidationError
		require.ErrorAs(t, err, &validation, "rating %d", invalid)
	}
	// rejected before any request is sent
	require.Equal(t, 0, transport.GetTotalCallCount())
}

func TestMutationInvalidatesCache(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/film")
	defer cleanup()
	ctx := context.Background()

	client, transport := newTestClient(t)
	registerFilmPages(transport, "black-swan")
	transport.RegisterResponder("POST", testBaseUrl+"/film/black-swan/rate/",
		httpmock.NewStringResponder(200, `{"result": true}`))

	first, err := client.Fetch(ctx, "black-swan")
	require.NoError(t, err)

	require.NoError(t, client.Rate(ctx, "black-swan", 9))

	second, err := client.Fetch(ctx, "black-swan")
	require.NoError(t, err)
	require.NotSame(t, first, second)
}
