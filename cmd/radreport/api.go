package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/server/endpoints"
)

var serverURL string

// getServerURL is evaluated when an api command runs, after flag parsing.
func getServerURL() string {
	return serverURL
}

func newAPICmd() *cobra.Command {
	top := api.NewRegistry(
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.StructureReportEndpoint{},
		&endpoints.SwaggerEndpoint{},
	)
	cmd := top.Group("api", "Commands that call the running server", getServerURL)
	cmd.Long = `API commands call a running radreport server over HTTP.

Start one with "radreport serve" and point at it with --server.

Examples:
  radreport api health                      # Check server health
  radreport api structure "CT ABDOMEN..."   # Structure a report
  radreport api llmcalls trace <session>    # Model calls of one dialogue`
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	groups := []struct {
		use, short string
		eps        []api.Endpoint
	}{
		{"templates", "Template catalog commands", endpoints.TemplateCommands()},
		{"prompts", "Prompt commands", endpoints.PromptCommands()},
		{"llmcalls", "LLM call history commands", endpoints.LLMCallCommands()},
		{"settings", "Configuration settings commands", endpoints.SettingsCommands()},
	}
	for _, g := range groups {
		cmd.AddCommand(api.NewRegistry(g.eps...).Group(g.use, g.short, getServerURL))
	}
	return cmd
}

func init() {
	rootCmd.AddCommand(newAPICmd())
}
