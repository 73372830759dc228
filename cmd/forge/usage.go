// AngelaMos | 2026
// usage.go

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Maintain usage records",
}

// usageResetDueCmd is meant to run from a scheduler, e.g. hourly cron.
// Records whose period has ended get zeroed counters and a new reset date.
var usageResetDueCmd = &cobra.Command{
	Use:   "reset-due",
	Short: "Reset every usage record whose period has ended",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		b, err := openBackends(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer b.close(logger)

		now := time.Now().UTC()
		n, err := b.store.ResetDue(cmd.Context(), now)
		if err != nil {
			return fmt.Errorf("reset due usage: %w", err)
		}

		logger.Info("usage reset complete",
			"records", n,
			"as_of", now.Format(time.RFC3339),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d usage records\n", n)
		return nil
	},
}

func init() {
	usageCmd.AddCommand(usageResetDueCmd)
}
