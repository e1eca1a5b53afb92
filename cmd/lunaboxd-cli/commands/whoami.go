package commands

import (
	"lunaboxd/lib/scrapers/letterboxd/member"
	"lunaboxd/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Verifies the session against the site and shows the logged-in profile.",
	Run: func(cmd *cobra.Command, args []string) {
		session := newSession(cmd.Context())
		loggedIn, err := session.VerifyLoggedIn(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to verify session", err)
		}

		members, err := member.New(member.Options{Core: session})
		if err != nil {
			serviceutil.Fatal("failed to initialize member client", err)
		}
		self, err := members.Self(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch own profile", err)
		}

		t := newTable()
		t.AppendRow(table.Row{"username", self.Username})
		t.AppendRow(table.Row{"display name", self.DisplayName})
		t.AppendRow(table.Row{"logged in", loggedIn})
		t.Render()
	},
}
