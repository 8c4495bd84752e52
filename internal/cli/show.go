package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealer-pricing/internal/app"
)

var (
	showTenant string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent stored suggestions and alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		tenantID, err := parseID("tenant", showTenant)
		if err != nil {
			return err
		}

		opts := app.ShowOptions{
			TenantID: tenantID,
			Limit:    showLimit,
		}

		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showTenant, "tenant", "", "Tenant id")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
}
