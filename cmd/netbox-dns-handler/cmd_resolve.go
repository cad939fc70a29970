package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexbarcelo/netbox-dns-handler/internal/reconciler"
)

// newCmdResolve returns the command that prints the zone of each name.
func newCmdResolve(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Show which zone each name would be stored in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			resolutions, err := reconciler.Resolve(cmd.Context(), st, a.cfg.RootDomain, args, a.logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tZONE ID\tZONE")
			failed := 0
			for _, r := range resolutions {
				if r.Err != nil {
					failed++
					fmt.Fprintf(w, "%s\t-\t%v\n", r.Name, r.Err)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", r.Name, r.ZoneID, r.ZoneName)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d names are outside %s", failed, len(resolutions), a.cfg.RootDomain)
			}
			return nil
		},
	}
}
