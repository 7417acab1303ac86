package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/hellopet-e2e/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect run configurations",
	}

	var variant string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as TOML",
		Long: `Print the resolved configuration in the HELLOPET_CONFIG override format,
after the variant, override file and HELLOPET_* env vars are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(variant)
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfg.Name, data)
			return nil
		},
	}
	show.Flags().StringVar(&variant, "config", "", "configuration name; default from PLAYWRIGHT_ENV/CI")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the configuration names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Names(), "\n"))
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}
