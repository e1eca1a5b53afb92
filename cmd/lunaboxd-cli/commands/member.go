package commands

import (
	"lunaboxd/lib/scrapers/letterboxd"
	"lunaboxd/lib/scrapers/letterboxd/member"
	"lunaboxd/lib/util/serviceutil"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(memberCmd)
}

func newMemberClient(cmd *cobra.Command) *member.Client {
	members, err := member.New(member.Options{Core: newSession(cmd.Context())})
	if err != nil {
		serviceutil.Fatal("failed to initialize member client", err)
	}
	return members
}

var memberCmd = &cobra.Command{
	Use:   "member <username>",
	Short: "Shows a member's profile, headline stats and favourites.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		members := newMemberClient(cmd)
		m, err := members.Fetch(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch member", err)
		}
		known, err := members.FollowersYouKnow(cmd.Context(), m.Username)
		if err != nil {
			serviceutil.Fatal("failed to fetch followers you know", err)
		}

		favourites := make([]string, len(m.Favourites))
		for i, favourite := range m.Favourites {
			favourites[i] = favourite.Name
		}

		t := newTable()
		t.AppendHeader(table.Row{"", m.DisplayName})
		t.AppendRow(table.Row{"username", m.Username})
		if m.Badge != "" {
			t.AppendRow(table.Row{"badge", m.Badge})
		}
		if m.Location != "" {
			t.AppendRow(table.Row{"location", m.Location})
		}
		t.AppendRow(table.Row{"films", letterboxd.FormatShortNum(m.Stats.Films)})
		t.AppendRow(table.Row{"this year", letterboxd.FormatShortNum(m.Stats.FilmsThisYear)})
		t.AppendRow(table.Row{"year projection", m.YearProjection(time.Now())})
		t.AppendRow(table.Row{"rating average", score(m.RatingAverage(), m.Histogram.Total() > 0)})
		t.AppendRow(table.Row{"following", letterboxd.FormatShortNum(m.Stats.Following)})
		t.AppendRow(table.Row{"followers", letterboxd.FormatShortNum(m.Stats.Followers)})
		t.AppendRow(table.Row{"followers you know", strings.Join(known, ", ")})
		t.AppendRow(table.Row{"favourites", strings.Join(favourites, ", ")})
		t.Render()
	},
}
