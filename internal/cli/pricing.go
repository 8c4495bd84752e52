package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dealer-pricing/internal/app"
)

var (
	tenantFlag  string
	vehicleFlag string
	asOfFlag    string
	persistFlag bool
	priceFlag   string
	profileFlag string
)

var repriceCmd = &cobra.Command{
	Use:   "reprice",
	Short: "Suggest prices for every in-stock vehicle of a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", tenantFlag)
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}
		return getApp().Reprice(cmd.Context(), cmd.OutOrStdout(), tenantID, asOf)
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a price for one inventory vehicle",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", tenantFlag)
		if err != nil {
			return err
		}
		vehicleID, err := parseID("vehicle", vehicleFlag)
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}
		return getApp().Suggest(cmd.Context(), cmd.OutOrStdout(), app.SuggestOptions{
			TenantID:  tenantID,
			VehicleID: vehicleID,
			AsOf:      asOf,
			Persist:   persistFlag,
		})
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Suggest a price for a vehicle profile that is not in inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", tenantFlag)
		if err != nil {
			return err
		}
		if profileFlag == "" {
			return fmt.Errorf("--profile must be provided")
		}
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}
		return getApp().Quote(cmd.Context(), cmd.OutOrStdout(), tenantID, profileFlag, asOf)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write a price back to a vehicle's asking price",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", tenantFlag)
		if err != nil {
			return err
		}
		vehicleID, err := parseID("vehicle", vehicleFlag)
		if err != nil {
			return err
		}
		price, err := decimal.NewFromString(priceFlag)
		if err != nil {
			return fmt.Errorf("invalid --price value: %w", err)
		}
		if err := getApp().Apply(cmd.Context(), tenantID, vehicleID, price); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "asking price of %s set to %s\n", vehicleID, price.Round(0))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{repriceCmd, suggestCmd, quoteCmd, applyCmd} {
		c.Flags().StringVar(&tenantFlag, "tenant", "", "Tenant id")
	}
	for _, c := range []*cobra.Command{suggestCmd, applyCmd} {
		c.Flags().StringVar(&vehicleFlag, "vehicle", "", "Vehicle id")
	}
	for _, c := range []*cobra.Command{repriceCmd, suggestCmd, quoteCmd} {
		c.Flags().StringVar(&asOfFlag, "as-of", "", "Pricing timestamp (RFC3339, defaults to now)")
	}
	suggestCmd.Flags().BoolVar(&persistFlag, "persist", false, "Store the suggestion")
	quoteCmd.Flags().StringVar(&profileFlag, "profile", "", "Path to a vehicle profile JSON file, or - for stdin")
	applyCmd.Flags().StringVar(&priceFlag, "price", "", "New asking price")
}
