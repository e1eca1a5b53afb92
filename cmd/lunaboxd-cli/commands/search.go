package commands

import (
	"lunaboxd/lib/scrapers/letterboxd/find"
	"lunaboxd/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var searchLimit *int

func init() {
	searchLimit = searchCmd.Flags().Int("limit", 10, "The maximum number of results, -1 for every page.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <films|members|lists|tags> <query> [--limit <n>]",
	Short: "Searches the site within one category.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		session := newSession(cmd.Context())
		finder, err := find.New(find.Options{Core: session})
		if err != nil {
			serviceutil.Fatal("failed to initialize find client", err)
		}
		results, err := finder.Search(cmd.Context(), find.Category(args[0]), args[1], *searchLimit)
		if err != nil {
			serviceutil.Fatal("search failed", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"slug", "name", "owner"})
		for _, result := range results {
			t.AppendRow(table.Row{result.Slug, result.Name, result.Owner})
		}
		t.Render()
	},
}
