package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Establishes a session with the configured credentials and persists it.",
	Run: func(cmd *cobra.Command, args []string) {
		session := newSession(cmd.Context())
		slog.Info("session established", "username", session.Username)
	},
}
