package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
)

func newAccountsCmd() *cobra.Command {
	var showPasswords bool
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the fixture test accounts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tNICKNAME\tPASSWORD\tDESCRIPTION")
			for _, name := range accounts.Names() {
				a := accounts.MustGet(name)
				pw := "********"
				if showPasswords {
					pw = a.Password
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, a.Email, a.Nickname, pw, a.Description)
			}
			w.Flush()
		},
	}
	cmd.Flags().BoolVar(&showPasswords, "show-passwords", false, "print passwords instead of a mask")
	return cmd
}
