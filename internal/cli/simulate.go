package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateAsking    float64
	simulateSuggested float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic price deviation alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAsking <= 0 || simulateSuggested <= 0 {
			return errors.New("--asking and --suggested must be greater than zero")
		}

		asking := decimal.NewFromFloat(simulateAsking)
		suggested := decimal.NewFromFloat(simulateSuggested)
		return getApp().SimulateAlert(cmd.Context(), asking, suggested)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateAsking, "asking", 0, "Asking price")
	simulateCmd.Flags().Float64Var(&simulateSuggested, "suggested", 0, "Suggested mid price")
}
