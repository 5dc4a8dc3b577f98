package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/server/endpoints"
)

var configDefault bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective local configuration",
	Long: `Show configuration as local commands see it: defaults, then the config
file, then RADREPORT_* environment variables. Literal API keys are masked.

Use "radreport api settings" to inspect a running server instead.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), endpoints.SettingsResponse{
			File:     cm.ConfigFile(),
			Settings: cm.Entries(),
		})
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one setting by dotted key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lookup := config.RequireDefault
		if !configDefault {
			_, cm, err := loadConfig()
			if err != nil {
				return err
			}
			lookup = cm.Lookup
		}
		entry, err := lookup(args[0])
		if err != nil {
			return err
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), config.Redact(entry))
	},
}

func init() {
	configGetCmd.Flags().BoolVar(&configDefault, "default", false, "Show the built-in default instead")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
