package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	aggregateProductID   string
	aggregateGranularity string
	aggregateWindow      int
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Print OHLC price buckets for a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if aggregateProductID == "" {
			return errors.New("--product is required")
		}
		if aggregateWindow <= 0 {
			return errors.New("--window must be greater than zero")
		}

		return getApp().Aggregate(cmd.Context(), app.AggregateOptions{
			ProductID:   aggregateProductID,
			Granularity: aggregateGranularity,
			WindowDays:  aggregateWindow,
		})
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateProductID, "product", "", "Product id")
	aggregateCmd.Flags().StringVar(&aggregateGranularity, "granularity", "day", "Bucket width: hour, day, week, or month")
	aggregateCmd.Flags().IntVar(&aggregateWindow, "window", 30, "Window size in days")
}
