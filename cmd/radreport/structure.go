package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/document"
	"github.com/jackzampolin/radreport/internal/present"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/structurer"
)

// APIKeyEnv is read when no --api-key* flag is given.
const APIKeyEnv = config.EnvPrefix + "_API_KEY"

var (
	structureFile       string
	structureFormat     string
	structureProvider   string
	structureModel      string
	structureDryRun     bool
	structureAPIKey     string
	structureAPIKeyEnv  string
	structureAPIKeyFile string
)

var structureCmd = &cobra.Command{
	Use:   "structure [text]",
	Short: "Structure a report locally without a server",
	Long: `Structure one radiology report and print the result.

The report is read from the argument, from --file (.txt, .docx or .pdf),
or from stdin. Model calls go directly to the configured provider.

The API key comes from exactly one of --api-key, --api-key-env or
--api-key-file. Without them $RADREPORT_API_KEY is used when set, then the
provider's configured key.

Examples:
  radreport structure "CT abdomen: 3 cm mass in the pancreatic head."
  radreport structure --file report.docx --format table
  cat report.txt | radreport structure --format csv > report.csv
  radreport structure --dry-run --file report.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := present.ParseFormat(structureFormat)
		if err != nil {
			return err
		}

		text, err := reportText(cmd, args)
		if err != nil {
			return err
		}

		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg, err := cm.Get().WithProvider(structureProvider, structureModel, credentialFromFlags())
		if err != nil {
			return err
		}
		if p := cfg.LLMProviders[cfg.Defaults.LLMProvider]; !structureDryRun && p.Type != providers.TypeMock {
			if _, err := p.Credential().Resolve(); err != nil {
				return fmt.Errorf("provider %q: %w", cfg.Defaults.LLMProvider, err)
			}
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		registry.Reload(cfg.ToProviderRegistryConfig())

		svc, err := structurer.New(structurer.Options{
			Config:   func() *config.Config { return cfg },
			Registry: registry,
			Catalog:  catalog,
			Logger:   logger,
			DryRun:   structureDryRun,
		})
		if err != nil {
			return err
		}

		res, err := svc.Structure(ctx, text)
		if err != nil {
			return err
		}
		return present.Write(cmd.OutOrStdout(), format, present.FromResult(res))
	},
}

// reportText reads the report from the argument, --file or stdin.
func reportText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1 && structureFile != "":
		return "", errors.New("pass either report text or --file, not both")
	case len(args) == 1:
		return args[0], nil
	case structureFile != "":
		f, err := os.Open(structureFile)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return document.Extract(filepath.Base(structureFile), f)
	default:
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), document.MaxSize))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// credentialFromFlags maps the key flags to a credential. Setting more than
// one flag yields an ambiguous credential, reported on Resolve.
func credentialFromFlags() config.Credential {
	cred := config.Credential{
		Value: structureAPIKey,
		Env:   structureAPIKeyEnv,
		File:  structureAPIKeyFile,
	}
	if cred.IsZero() && os.Getenv(APIKeyEnv) != "" {
		cred.Env = APIKeyEnv
	}
	return cred
}

func init() {
	structureCmd.Flags().StringVarP(&structureFile, "file", "f", "", "Read the report from a .txt, .docx or .pdf file")
	structureCmd.Flags().StringVar(&structureFormat, "format", "json", "Output format: json, yaml, csv or table")
	structureCmd.Flags().StringVar(&structureProvider, "provider", "", "LLM provider (default: defaults.llm_provider)")
	structureCmd.Flags().StringVar(&structureModel, "model", "", "Model override")
	structureCmd.Flags().BoolVar(&structureDryRun, "dry-run", false, "Answer model calls locally without a provider")
	structureCmd.Flags().StringVar(&structureAPIKey, "api-key", "", "API key (supports ${ENV_VAR})")
	structureCmd.Flags().StringVar(&structureAPIKeyEnv, "api-key-env", "", "Environment variable holding the API key")
	structureCmd.Flags().StringVar(&structureAPIKeyFile, "api-key-file", "", "File holding the API key")

	rootCmd.AddCommand(structureCmd)
}
