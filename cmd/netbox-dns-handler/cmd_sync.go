package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCmdSync returns the command that runs one reconciliation.
func newCmdSync(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			src, err := a.newSource()
			if err != nil {
				return err
			}
			runner, err := a.newRunner(st, src)
			if err != nil {
				return err
			}

			result, runErr := runner.Run(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprint(out, result.Summary())
			if verbose {
				for _, action := range result.Actions {
					fmt.Fprintf(out, "  %s\n", action)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every action")
	return cmd
}
