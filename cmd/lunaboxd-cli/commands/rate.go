package commands

import (
	"log/slog"
	"lunaboxd/lib/util/serviceutil"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rateCmd)
}

var rateCmd = &cobra.Command{
	Use:   "rate <name-or-slug> <half-stars>",
	Short: "Rates a film in half-star units 0-10, where 0 removes the rating.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		halfStars, err := strconv.Atoi(args[1])
		if err != nil {
			serviceutil.Fatal("half-stars must be a whole number", err)
		}

		err = newFilmClient(cmd).Rate(cmd.Context(), args[0], halfStars)
		if err != nil {
			serviceutil.Fatal("failed to rate film", err)
		}
		slog.Info("rated film", "film", args[0], "half_stars", halfStars)
	},
}
