package commands

import (
	"lunaboxd/lib/scrapers/letterboxd/member"
	"lunaboxd/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var tagsCategory *string

func init() {
	tagsCategory = tagsCmd.Flags().String("category", member.TagsDiary, "The tag index to list: diary, reviews or lists.")
	rootCmd.AddCommand(tagsCmd)
}

var tagsCmd = &cobra.Command{
	Use:   "tags <username> [--category <diary|reviews|lists>]",
	Short: "Lists the tags a member has applied within one category.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tags, err := newMemberClient(cmd).Tags(cmd.Context(), args[0], *tagsCategory)
		if err != nil {
			serviceutil.Fatal("failed to fetch tags", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"tag", "uses"})
		for _, tag := range tags {
			t.AppendRow(table.Row{tag.Name, tag.Uses})
		}
		t.Render()
	},
}
