package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dealer-pricing/internal/app"
)

var (
	backfillTenant string
	backfillFrom   string
	backfillTo     string
	backfillStep   time.Duration
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay repricing of current inventory at historical dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", backfillTenant)
		if err != nil {
			return err
		}
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := time.Parse(time.RFC3339, backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := time.Parse(time.RFC3339, backfillTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.BackfillOptions{
			TenantID: tenantID,
			From:     from,
			To:       to,
			Step:     backfillStep,
			DryRun:   backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillTenant, "tenant", "", "Tenant id")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End timestamp (RFC3339, exclusive)")
	backfillCmd.Flags().DurationVar(&backfillStep, "step", 24*time.Hour, "Interval between replayed dates")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing suggestions")
}
