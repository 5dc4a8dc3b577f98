package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/home"
	"github.com/jackzampolin/radreport/internal/templates"
	"github.com/jackzampolin/radreport/version"
)

var (
	cfgFile      string
	homeDir      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "radreport",
	Short: "Structure free-text radiology reports with an LLM",
	Long: `radreport turns a free-text radiology report into a structured JSON
document through a two-stage LLM dialogue.

The dialogue:
  - Classifies the report (main finding and best-fitting template)
  - Resolves the template name against the catalog
  - Fills the template skeleton, or structures free-form when none fits
  - Retries the whole dialogue on transient model failures`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.radreport/config.yaml or ./config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "radreport home directory (default: ~/.radreport)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: log_level from config)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads configuration from it.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	cm, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	return h, cm, nil
}

// loadCatalog reads the configured catalog, or the built-in one.
func loadCatalog(cfg *config.Config) (*templates.Catalog, error) {
	if cfg.Templates.Path != "" {
		return templates.Load(cfg.Templates.Path)
	}
	return templates.Default()
}

// newLogger builds the CLI logger. The flag wins over the configured level.
// Logs go to stderr so command output stays machine-readable.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := logLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
