package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rulesTenant string
	rulesFile   string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Read or replace a tenant's pricing rules",
}

var rulesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the effective pricing rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", rulesTenant)
		if err != nil {
			return err
		}
		return getApp().GetRules(cmd.Context(), cmd.OutOrStdout(), tenantID)
	},
}

var rulesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Validate and store pricing rules from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseID("tenant", rulesTenant)
		if err != nil {
			return err
		}
		if rulesFile == "" {
			return fmt.Errorf("--file must be provided")
		}
		return getApp().SetRules(cmd.Context(), cmd.OutOrStdout(), tenantID, rulesFile)
	},
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesTenant, "tenant", "", "Tenant id")
	rulesSetCmd.Flags().StringVar(&rulesFile, "file", "", "Path to a rules JSON file, or - for stdin")
	rulesCmd.AddCommand(rulesGetCmd, rulesSetCmd)
}
