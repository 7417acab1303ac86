// Command hellopet-e2e runs the Hello Pet browser suite and inspects its
// configuration.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/obs"
)

// errTestsFailed is returned by run when the suite finished with failures.
var errTestsFailed = errors.New("tests failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hellopet-e2e",
		Short: "Run the Hello Pet end-to-end browser suite",
		Long: `hellopet-e2e drives the Hello Pet browser tests with go test, adding
per-test retries, a max-failures threshold, a global timeout and reporters.

The run configuration is picked from PLAYWRIGHT_ENV (base, ci, dev, debug,
fast), falling back to ci when CI is set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newConfigCmd(), newAccountsCmd(), newInstallCmd())
	return root
}

func exitCode(err error) int {
	if errors.Is(err, errTestsFailed) {
		return 1
	}
	return errs.ExitCode(err)
}

func main() {
	obs.Init()
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}
