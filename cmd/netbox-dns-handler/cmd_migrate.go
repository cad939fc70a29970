package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alexbarcelo/netbox-dns-handler/internal/store/rdb"
)

// newCmdMigrate returns the command that prepares a fresh database.
func newCmdMigrate(a *app) *cobra.Command {
	var zones []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the domains and records tables and optional zones",
		Long: "migrate creates the domains and records tables when they do not exist.\n" +
			"The root zone and every --zone are created when missing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := rdb.AutoMigrate(st.DB()); err != nil {
				return fmt.Errorf("migrating schema: %w", err)
			}
			a.logger.Info("schema ready")

			out := cmd.OutOrStdout()
			for _, name := range append([]string{a.cfg.RootDomain}, zones...) {
				z, created, err := st.CreateZone(cmd.Context(), name)
				if err != nil {
					return err
				}
				a.logger.Info("zone ready",
					slog.String("zone", z.Name),
					slog.Int64("id", z.ID),
					slog.Bool("created", created),
				)
				state := "exists"
				if created {
					state = "created"
				}
				fmt.Fprintf(out, "%s\t%d\t%s\n", z.Name, z.ID, state)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&zones, "zone", nil, "Additional zone to create (repeatable)")
	return cmd
}
