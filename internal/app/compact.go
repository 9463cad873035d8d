package app

import (
	"context"
	"fmt"
	"os"

	"price-watch/internal/history"
)

// Compact runs one compaction pass and prints the result.
func (a *App) Compact(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	compactor := history.NewCompactor(store, store, a.Logger)
	report, err := compactor.Compact(ctx, a.Config.Compaction.RetentionDays)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "product-days: %d\ncompacted: %d\nconflicts: %d\nfailed: %d\n",
		report.Days, report.Compacted, report.Conflicts, report.Failed)
	return nil
}
