package commands

import (
	"fmt"
	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/film"
	"lunaboxd/lib/util/serviceutil"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(filmCmd)
}

func newFilmClient(cmd *cobra.Command) *film.Client {
	films, err := film.New(film.Options{Core: newSession(cmd.Context())})
	if err != nil {
		serviceutil.Fatal("failed to initialize film client", err)
	}
	return films
}

var filmCmd = &cobra.Command{
	Use:   "film <name-or-slug>",
	Short: "Shows a film's details, stats and rating scores.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := newFilmClient(cmd).Fetch(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch film", err)
		}
		renderFilm(f)
	},
}

func renderFilm(f *film.Film) {
	mean, rated := f.TrueMean()
	site := "-"
	if f.HasWeightedAverage {
		site = fmt.Sprintf("%.2f", f.WeightedAverage)
	}
	friends := "-"
	if friendScore, ok := f.FriendBayesianScore(); ok {
		friends = fmt.Sprintf("%.2f", friendScore)
	}
	scores := fmt.Sprintf(
		"site %s | mean %s | bayesian %s | friends %s | ironic %v",
		site, score(mean, rated), score(f.BayesianScore(), rated), friends, f.IsIronic(),
	)

	t := newTable()
	t.AppendHeader(table.Row{"", f.PrettyName})
	t.AppendRow(table.Row{"id", f.Id})
	t.AppendRow(table.Row{"short", f.ShortLink})
	t.AppendRow(table.Row{"year", f.Year})
	t.AppendRow(table.Row{"genres", strings.Join(f.Genres, ", ")})
	t.AppendRow(table.Row{"length", letterboxd.FormatRuntime(f.RuntimeMins)})
	t.AppendRow(table.Row{"description", truncate(f.Description, 250)})
	t.AppendRow(table.Row{"languages", strings.Join(f.Languages, ", ")})
	t.AppendRow(table.Row{"regions", strings.Join(f.Regions, ", ")})
	t.AppendRow(table.Row{"studios", strings.Join(f.Studios, ", ")})
	t.AppendRow(table.Row{"producers", previewList(f.Crew["Producer"])})
	t.AppendRow(table.Row{"directors", previewList(f.Crew["Director"])})
	t.AppendRow(table.Row{"writers", previewList(f.Crew["Writer"])})
	t.AppendRow(table.Row{"actors", previewList(f.Cast)})
	t.AppendRow(table.Row{"views", letterboxd.FormatShortNum(f.Watches)})
	t.AppendRow(table.Row{"likes", letterboxd.FormatShortNum(f.Likes)})
	t.AppendRow(table.Row{"lists", letterboxd.FormatShortNum(f.Lists)})
	t.AppendRow(table.Row{"fans", letterboxd.FormatShortNum(f.Fans)})
	t.AppendRow(table.Row{"scores", scores})
	t.Render()
}

// previewList joins up to the first ten items so full cast lists do
// not flood the table.
func previewList(items []string) string {
	const max = 10
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, +%d more", strings.Join(items[:max], ", "), len(items)-max)
}

// truncate cuts display text at the last full word under the limit.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	if cut := strings.LastIndex(text[:max], " "); cut > 0 {
		return text[:cut] + " ..."
	}
	return text[:max] + " ..."
}
