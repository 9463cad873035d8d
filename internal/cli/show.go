package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	showProductID string
	showLimit     int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent price observations for a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showProductID == "" {
			return errors.New("--product is required")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			ProductID: showProductID,
			Limit:     showLimit,
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showProductID, "product", "", "Product id")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of observations to display")
}
