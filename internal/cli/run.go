package cli

import (
	"github.com/spf13/cobra"
)

var serveWithScheduler bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled repricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pricing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), serveWithScheduler)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "Also run scheduled repricing in this process")
}
