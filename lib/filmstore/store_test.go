package filmstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/filmstore/db"
	"lunaboxd/lib/sqliteutil"
	"lunaboxd/lib/telemetry"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:filmstore")
	defer cleanup()

	sqlite, err := sqliteutil.OpenDB(db.Schema, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store := New(sqlite)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	fetchedAt := time.Unix(1756100000, 0)

	{
		_, ok, err := store.GetFilm(ctx, "unknown-film")
		require.NoError(t, err)
		require.False(t, ok)
	}
	{
		err := store.PutFilms(ctx, []FilmSnapshot{
			{
				Slug:      "black-swan",
				Title:     "Black Swan",
				Year:      2010,
				TrueMean:  3.92,
				Bayesian:  3.87,
				Ratings:   map[int]int64{8: 250777, 10: 140340},
				FetchedAt: fetchedAt,
			},
			{
				Slug:      "stalker",
				Title:     "Stalker",
				Year:      1979,
				TrueMean:  4.31,
				Bayesian:  4.28,
				Ratings:   map[int]int64{9: 88210, 10: 120554},
				FetchedAt: fetchedAt,
			},
		})
		require.NoError(t, err)

		film, ok, err := store.GetFilm(ctx, "black-swan")
		require.NoError(t, err)
		require.True(t, ok)
		diff := cmp.Diff(FilmSnapshot{
			Slug:      "black-swan",
			Title:     "Black Swan",
			Year:      2010,
			TrueMean:  3.92,
			Bayesian:  3.87,
			Ratings:   map[int]int64{8: 250777, 10: 140340},
			FetchedAt: fetchedAt,
		}, film)
		require.Empty(t, diff)
	}
	{
		// a second push replaces the histogram, it must not accumulate
		err := store.PutFilms(ctx, []FilmSnapshot{{
			Slug:      "black-swan",
			Title:     "Black Swan",
			Year:      2010,
			TrueMean:  3.94,
			Bayesian:  3.9,
			Ratings:   map[int]int64{8: 251000},
			FetchedAt: fetchedAt.Add(time.Hour),
		}})
		require.NoError(t, err)

		film, ok, err := store.GetFilm(ctx, "black-swan")
		require.NoError(t, err)
		require.True(t, ok)
		require.InDelta(t, 3.94, film.TrueMean, 1e-9)
		require.Equal(t, map[int]int64{8: 251000}, film.Ratings)

		other, ok, err := store.GetFilm(ctx, "stalker")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, map[int]int64{9: 88210, 10: 120554}, other.Ratings)
	}
	{
		_, ok, err := store.GetMember(ctx, "nia")
		require.NoError(t, err)
		require.False(t, ok)

		err = store.PutMember(ctx, MemberSnapshot{
			Username:    "nia",
			DisplayName: "Nia Prenn",
			FetchedAt:   fetchedAt,
		})
		require.NoError(t, err)

		err = store.PutMember(ctx, MemberSnapshot{
			Username:    "nia",
			DisplayName: "Nia P.",
			FetchedAt:   fetchedAt.Add(time.Hour),
		})
		require.NoError(t, err)

		got, ok, err := store.GetMember(ctx, "nia")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Nia P.", got.DisplayName)
	}
}
