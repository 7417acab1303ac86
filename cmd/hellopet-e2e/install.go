package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/errs"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download the Playwright driver and Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := driver.InstallBrowsers(); err != nil {
				return errs.Wrap(errs.Internal, "install browsers", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "chromium installed")
			return nil
		},
	}
}
