package commands

import (
	"log/slog"
	"lunaboxd/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
	rootCmd.AddCommand(watchlistCmd)
}

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Adds films to and removes films from the watchlist.",
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <name-or-slug>",
	Short: "Puts a film on the watchlist.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := newFilmClient(cmd).AddToWatchlist(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to add to watchlist", err)
		}
		slog.Info("added to watchlist", "film", args[0])
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove <name-or-slug>",
	Short: "Takes a film off the watchlist.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := newFilmClient(cmd).RemoveFromWatchlist(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to remove from watchlist", err)
		}
		slog.Info("removed from watchlist", "film", args[0])
	},
}
