package main

import (
	"fmt"
	"log/slog"

	"github.com/alexbarcelo/netbox-dns-handler/internal/config"
	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory/file"
	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory/netbox"
	"github.com/alexbarcelo/netbox-dns-handler/internal/reconciler"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store/rdb"
)

// openStore opens the PowerDNS database.
func (a *app) openStore() (*rdb.Store, error) {
	st, err := rdb.Open(a.cfg.DatabaseURL, a.cfg.DatabaseDebug)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// newSource builds the configured inventory source.
func (a *app) newSource() (inventory.Source, error) {
	if err := a.cfg.ValidateInventory(); err != nil {
		return nil, err
	}

	inv := a.cfg.Inventory
	switch inv.Kind {
	case config.InventoryFile:
		a.logger.Info("using file inventory", slog.String("path", inv.File))
		return file.New(inv.File, a.logger), nil
	default:
		nb := inv.NetBox
		client := netbox.NewClient(nb.URL, nb.Token,
			netbox.WithLogger(a.logger),
			netbox.WithPageSize(nb.PageSize),
			netbox.WithTimeout(nb.Timeout),
			netbox.WithTLSSkipVerify(nb.TLSSkipVerify),
			netbox.WithUserAgent("netbox-dns-handler/"+Version),
		)
		a.logger.Info("using netbox inventory", slog.String("url", nb.URL))
		return netbox.NewSource(client, a.logger), nil
	}
}

// newRunner wires the store, the inventory and the reconciler settings.
func (a *app) newRunner(st *rdb.Store, src inventory.Source) (*reconciler.Runner, error) {
	rc, err := a.cfg.ReconcilerConfig()
	if err != nil {
		return nil, err
	}
	if rc.PruneScope != nil {
		a.logger.Info("prune scope configured", slog.String("scope", rc.PruneScope.String()))
	}

	return reconciler.NewRunner(st, src, a.cfg.RootDomain, a.cfg.ServiceMappings(),
		reconciler.WithConfig(rc),
		reconciler.WithLogger(a.logger),
	), nil
}
