package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexbarcelo/netbox-dns-handler/internal/config"
	"github.com/alexbarcelo/netbox-dns-handler/internal/dnscheck"
)

// newCmdVerify returns the command that checks the inventory addresses
// against the authoritative DNS server.
func newCmdVerify(a *app) *cobra.Command {
	var (
		server  string
		useTCP  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the DNS server answers the inventory addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}

			vc := a.cfg.Verify
			if server != "" {
				vc.Server = server
			}
			if cmd.Flags().Changed("tcp") {
				vc.TCP = useTCP
			}
			if vc.Server == "" {
				return &config.ValidationError{Errors: []string{
					"verify server is required (--server or " + config.EnvPrefix + "VERIFY_SERVER)",
				}}
			}

			src, err := a.newSource()
			if err != nil {
				return err
			}
			ips, err := src.IPAddresses(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading ip addresses from %s: %w", src.Name(), err)
			}

			checker := dnscheck.New(vc.Server,
				dnscheck.WithTCP(vc.TCP),
				dnscheck.WithTimeout(vc.Timeout),
				dnscheck.WithLogger(a.logger),
			)
			report, err := checker.Verify(cmd.Context(), dnscheck.FromInventory(ips, a.cfg.RootDomain))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range report.Findings {
				if verbose || f.Status != dnscheck.StatusOK {
					fmt.Fprintln(out, f)
				}
			}
			fmt.Fprintln(out, report.Summary())

			if !report.OK() {
				return fmt.Errorf("%d of %d records not served as expected",
					len(report.Findings)-report.Count(dnscheck.StatusOK), len(report.Findings))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "DNS server as host:port (env "+config.EnvPrefix+"VERIFY_SERVER)")
	cmd.Flags().BoolVar(&useTCP, "tcp", false, "Query over TCP")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print records that are served correctly too")
	return cmd
}
