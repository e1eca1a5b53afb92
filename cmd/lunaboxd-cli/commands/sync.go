package commands

import (
	"log/slog"
	"lunaboxd/lib/filmstore"
	"lunaboxd/lib/filmstore/db"
	"lunaboxd/lib/scrapers/letterboxd/film"
	"lunaboxd/lib/scrapers/letterboxd/member"
	"lunaboxd/lib/sqliteutil"
	"lunaboxd/lib/util/serviceutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var syncDb *string

func init() {
	syncDb = syncCmd.Flags().String("db", "lunaboxd.db", "The database to write snapshots to.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync <username> [--db <path/to/snapshots.db>]",
	Short: "Snapshots a member and their favourite films into a database.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session := newSession(ctx)
		members, err := member.New(member.Options{Core: session})
		if err != nil {
			serviceutil.Fatal("failed to initialize member client", err)
		}
		films, err := film.New(film.Options{Core: session})
		if err != nil {
			serviceutil.Fatal("failed to initialize film client", err)
		}

		out, err := sqliteutil.OpenDB(db.Schema, *syncDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()
		store := filmstore.New(out)

		t1 := time.Now()
		m, err := members.Fetch(ctx, args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch member", err)
		}
		if previous, ok, err := store.GetMember(ctx, m.Username); err == nil && ok {
			slog.Info("member previously synced", "at", previous.FetchedAt)
		}
		err = store.PutMember(ctx, filmstore.MemberSnapshot{
			Username:    m.Username,
			DisplayName: m.DisplayName,
			FetchedAt:   time.Now(),
		})
		if err != nil {
			serviceutil.Fatal("failed to store member", err)
		}

		var snapshots []filmstore.FilmSnapshot
		for _, favourite := range m.Favourites {
			f, err := films.FetchById(ctx, favourite.FilmId)
			if err != nil {
				slog.Warn("skipping favourite", "film", favourite.Name, "err", err)
				continue
			}
			mean, _ := f.TrueMean()
			counts := make(map[int]int64, len(f.Histogram))
			for halfStars, count := range f.Histogram {
				counts[halfStars] = int64(count)
			}
			snapshots = append(snapshots, filmstore.FilmSnapshot{
				Slug:      f.Slug,
				Title:     f.Name,
				Year:      f.Year,
				TrueMean:  mean,
				Bayesian:  f.BayesianScore(),
				Ratings:   counts,
				FetchedAt: time.Now(),
			})
		}
		err = store.PutFilms(ctx, snapshots)
		if err != nil {
			serviceutil.Fatal("failed to store films", err)
		}
		slog.Info("sync time", "seconds", time.Since(t1).Seconds(), "films", len(snapshots))

		t := newTable()
		t.AppendHeader(table.Row{"slug", "title", "year", "mean", "bayesian", "ratings"})
		for _, snapshot := range snapshots {
			stored, ok, err := store.GetFilm(ctx, snapshot.Slug)
			if err != nil || !ok {
				continue
			}
			var total int64
			for _, count := range stored.Ratings {
				total += count
			}
			t.AppendRow(table.Row{
				stored.Slug, stored.Title, stored.Year,
				score(stored.TrueMean, total > 0),
				score(stored.Bayesian, total > 0),
				total,
			})
		}
		t.Render()
	},
}
