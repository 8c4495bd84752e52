package cli

import (
	"github.com/spf13/cobra"

	"dealer-pricing/internal/app"
)

var (
	exportTenant         string
	exportVehicle        string
	exportAsOf           string
	exportPNGPath        string
	exportCSVPath        string
	exportMaxComparables int
	exportUpload         bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a vehicle's comparables and price bands as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", exportTenant)
		if err != nil {
			return err
		}
		vehicleID, err := parseID("vehicle", exportVehicle)
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(exportAsOf)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			TenantID:       tenantID,
			VehicleID:      vehicleID,
			AsOf:           asOf,
			PNGPath:        exportPNGPath,
			CSVPath:        exportCSVPath,
			MaxComparables: exportMaxComparables,
			Upload:         exportUpload,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "Tenant id")
	exportCmd.Flags().StringVar(&exportVehicle, "vehicle", "", "Vehicle id")
	exportCmd.Flags().StringVar(&exportAsOf, "as-of", "", "Pricing timestamp (RFC3339, defaults to now)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxComparables, "max-comparables", 0, "Maximum comparables to export (defaults to config)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Upload the written files to the configured S3 bucket")
}
