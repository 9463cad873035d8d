package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	watchItemID      string
	watchProductID   string
	watchCustomerID  string
	watchTarget      float64
	watchNotifyOnAny bool

	unwatchItemID string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Create or update a price alert for a watched item",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchItemID == "" || watchProductID == "" {
			return errors.New("--item and --product are required")
		}
		if watchTarget <= 0 {
			return errors.New("--target must be greater than 0")
		}

		return getApp().Watch(cmd.Context(), app.WatchOptions{
			WatchedItemID: watchItemID,
			ProductID:     watchProductID,
			CustomerID:    watchCustomerID,
			TargetPrice:   decimal.NewFromFloat(watchTarget),
			NotifyOnDrop:  watchNotifyOnAny,
		})
	},
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch",
	Short: "Deactivate the price alert for a watched item",
	RunE: func(cmd *cobra.Command, args []string) error {
		if unwatchItemID == "" {
			return errors.New("--item is required")
		}
		return getApp().Unwatch(cmd.Context(), unwatchItemID)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchItemID, "item", "", "Watched wishlist item id")
	watchCmd.Flags().StringVar(&watchProductID, "product", "", "Product id to monitor")
	watchCmd.Flags().StringVar(&watchCustomerID, "customer", "", "Customer id owning the alert")
	watchCmd.Flags().Float64Var(&watchTarget, "target", 0, "Target price that fires the alert")
	watchCmd.Flags().BoolVar(&watchNotifyOnAny, "notify-on-drop", false, "Also notify on any material price drop")

	unwatchCmd.Flags().StringVar(&unwatchItemID, "item", "", "Watched wishlist item id")
}
