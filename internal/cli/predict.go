package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	predictProductID string
	predictDays      int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Print a least-squares price forecast for a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictProductID == "" {
			return errors.New("--product is required")
		}
		if predictDays <= 0 {
			return errors.New("--days must be greater than zero")
		}

		return getApp().Predict(cmd.Context(), app.PredictOptions{
			ProductID: predictProductID,
			DaysAhead: predictDays,
		})
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictProductID, "product", "", "Product id")
	predictCmd.Flags().IntVar(&predictDays, "days", 7, "Days ahead to project")
}
