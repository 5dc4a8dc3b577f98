package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/home"
	"github.com/jackzampolin/radreport/internal/templates"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the radreport home directory",
	Long: `Create the radreport home directory with a default config file and a
copy of the built-in template catalog.

Existing files are kept unless --force is given. The exported catalog is
not used until templates.path points at it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if h.ConfigExists() && !initForce {
			fmt.Fprintf(out, "config exists: %s\n", h.ConfigPath())
		} else {
			if err := config.WriteDefault(h.ConfigPath()); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote config: %s\n", h.ConfigPath())
		}

		catalog, err := templates.Default()
		if err != nil {
			return err
		}
		if err := exportCatalog(catalog, h.TemplatesPath(), initForce); err != nil {
			fmt.Fprintf(out, "templates kept: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "wrote %d templates: %s\n", catalog.Len(), h.TemplatesPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")

	rootCmd.AddCommand(initCmd)
}
