package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/present"
	"github.com/jackzampolin/radreport/internal/server/endpoints"
	"github.com/jackzampolin/radreport/internal/templates"
)

var exportForce bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the template catalog",
	Long: `Inspect the template catalog used by local commands.

The catalog is templates.path from the config, or the built-in catalog.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List template names in catalog order",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := localCatalog()
		if err != nil {
			return err
		}
		keys := catalog.Keys()
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(),
			endpoints.TemplatesListResponse{Templates: keys, Total: len(keys)})
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a template skeleton",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := localCatalog()
		if err != nil {
			return err
		}
		skeleton, ok := catalog.Skeleton(args[0])
		if !ok {
			return fmt.Errorf("template %q not found", args[0])
		}
		if api.GetOutputFormat() == api.OutputFormatJSON {
			return present.WriteJSON(cmd.OutOrStdout(), skeleton)
		}
		return present.WriteYAML(cmd.OutOrStdout(), skeleton)
	},
}

var templatesExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write the catalog as JSON",
	Long: `Write the catalog as JSON to path, or to stdout without one.

Exporting the built-in catalog gives a starting point for a custom
catalog; point templates.path at the edited file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := localCatalog()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return catalog.WriteJSON(cmd.OutOrStdout())
		}
		if err := exportCatalog(catalog, args[0], exportForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d templates to %s\n", catalog.Len(), args[0])
		return nil
	},
}

func localCatalog() (*templates.Catalog, error) {
	_, cm, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return loadCatalog(cm.Get())
}

// exportCatalog writes catalog to path, refusing to overwrite unless force.
func exportCatalog(catalog *templates.Catalog, path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	if err := catalog.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	templatesExportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite an existing file")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesExportCmd)
	rootCmd.AddCommand(templatesCmd)
}
