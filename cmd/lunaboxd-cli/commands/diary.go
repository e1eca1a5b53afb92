package commands

import (
	"log/slog"
	"lunaboxd/lib/scrapers/letterboxd/ratings"
	"lunaboxd/lib/scrapers/letterboxd/viewing"
	"lunaboxd/lib/util/serviceutil"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	diaryDate     *string
	diaryNoDate   *bool
	diaryRating   *int
	diaryReview   *string
	diarySpoilers *bool
	diaryRewatch  *bool
	diaryTags     *[]string

	retagFind    *[]string
	retagReplace *[]string
)

func init() {
	diaryDate = diaryEditCmd.Flags().String("date", "", "The watched-on date as yyyy-mm-dd.")
	diaryNoDate = diaryEditCmd.Flags().Bool("no-date", false, "Strips the watched-on date, leaving a plain viewing.")
	diaryRating = diaryEditCmd.Flags().Int("rating", 0, "The rating in half-star units 0-10, 0 clears it.")
	diaryReview = diaryEditCmd.Flags().String("review", "", "The review text.")
	diarySpoilers = diaryEditCmd.Flags().Bool("spoilers", false, "Whether the review contains spoilers.")
	diaryRewatch = diaryEditCmd.Flags().Bool("rewatch", false, "Whether the viewing is a rewatch.")
	diaryTags = diaryEditCmd.Flags().StringArray("tag", nil, "Replaces the viewing's tags, repeatable.")

	retagFind = diaryRetagCmd.Flags().StringArray("find", nil, "A tag to remove, repeatable.")
	retagReplace = diaryRetagCmd.Flags().StringArray("replace", nil, "A tag to append when something was removed, repeatable.")

	diaryCmd.AddCommand(diaryShowCmd)
	diaryCmd.AddCommand(diaryEditCmd)
	diaryCmd.AddCommand(diaryRetagCmd)
	rootCmd.AddCommand(diaryCmd)
}

var diaryCmd = &cobra.Command{
	Use:   "diary",
	Short: "Reads and edits logged viewings.",
}

func newViewingClient(cmd *cobra.Command) *viewing.Client {
	viewings, err := viewing.New(viewing.Options{Core: newSession(cmd.Context())})
	if err != nil {
		serviceutil.Fatal("failed to initialize viewing client", err)
	}
	return viewings
}

var diaryShowCmd = &cobra.Command{
	Use:   "show <username/film/slug[/n]>",
	Short: "Shows one logged viewing.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := newViewingClient(cmd).Fetch(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch viewing", err)
		}
		renderViewing(v)
	},
}

func renderViewing(v *viewing.Viewing) {
	rating := "-"
	if v.Rating > 0 {
		if stars, err := ratings.Stars(float64(v.Rating) / 2); err == nil {
			rating = stars
		}
	}
	date := "-"
	if !v.Date.IsZero() {
		date = v.Date.Format("2006-01-02")
	}

	t := newTable()
	t.AppendHeader(table.Row{"", v.FilmName})
	t.AppendRow(table.Row{"viewing id", v.ViewingId})
	t.AppendRow(table.Row{"film id", v.FilmId})
	t.AppendRow(table.Row{"date specified", v.DateSpecified})
	t.AppendRow(table.Row{"date", date})
	t.AppendRow(table.Row{"rewatch", v.Rewatch})
	t.AppendRow(table.Row{"rating", rating})
	t.AppendRow(table.Row{"liked", v.Liked})
	t.AppendRow(table.Row{"tags", strings.Join(v.Tags, ", ")})
	t.AppendRow(table.Row{"spoilers", v.ContainsSpoilers})
	t.AppendRow(table.Row{"review", truncate(v.Review, 250)})
	t.Render()
}

var diaryEditCmd = &cobra.Command{
	Use:   "edit <username/film/slug[/n]> [--date <yyyy-mm-dd>] [--rating <n>] [--review <text>] [--tag <tag>]...",
	Short: "Fetches a viewing, applies the given flags and saves it back.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		viewings := newViewingClient(cmd)
		v, err := viewings.Fetch(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch viewing", err)
		}

		flags := cmd.Flags()
		if flags.Changed("date") {
			date, err := time.Parse("2006-01-02", *diaryDate)
			if err != nil {
				serviceutil.Fatal("the date must be yyyy-mm-dd", err)
			}
			v.DateSpecified = true
			v.Date = date
		}
		if *diaryNoDate {
			v.DateSpecified = false
		}
		if flags.Changed("rating") {
			v.Rating = *diaryRating
		}
		if flags.Changed("review") {
			v.Review = *diaryReview
		}
		if flags.Changed("spoilers") {
			v.ContainsSpoilers = *diarySpoilers
		}
		if flags.Changed("rewatch") {
			v.Rewatch = *diaryRewatch
		}
		if flags.Changed("tag") {
			v.Tags = *diaryTags
		}

		err = viewings.Save(cmd.Context(), v)
		if err != nil {
			serviceutil.Fatal("failed to save viewing", err)
		}
		slog.Info("saved viewing", "path", v.Path())
	},
}

var diaryRetagCmd = &cobra.Command{
	Use:   "retag <username/film/slug[/n]> --find <tag> [--replace <tag>]",
	Short: "Swaps tags on a viewing, saving only when a find tag was present.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := newViewingClient(cmd).ReplaceTags(cmd.Context(), args[0], *retagFind, *retagReplace)
		if err != nil {
			serviceutil.Fatal("failed to replace tags", err)
		}
		slog.Info("viewing tags", "path", v.Path(), "tags", strings.Join(v.Tags, ", "))
	},
}
