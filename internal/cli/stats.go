package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	statsProductID string
	statsWindow    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print windowed price statistics for a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsProductID == "" {
			return errors.New("--product is required")
		}
		if statsWindow <= 0 {
			return errors.New("--window must be greater than zero")
		}

		return getApp().Stats(cmd.Context(), app.StatsOptions{
			ProductID:  statsProductID,
			WindowDays: statsWindow,
		})
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsProductID, "product", "", "Product id")
	statsCmd.Flags().IntVar(&statsWindow, "window", 30, "Window size in days")
}
