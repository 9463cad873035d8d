package cli

import (
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Run one compaction pass over aged raw observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Compact(cmd.Context())
	},
}
