package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"price-watch/internal/app"
)

var (
	simulateAlertID int64
	simulatePrice   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a stored alert against a fixed price",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAlertID <= 0 {
			return errors.New("--alert must be greater than 0")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}

		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			AlertID: simulateAlertID,
			Price:   decimal.NewFromFloat(simulatePrice),
		})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateAlertID, "alert", 0, "Alert id to evaluate")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Simulated catalog price")
}
