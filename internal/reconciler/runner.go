package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/metrics"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// ServiceMapping publishes the inventory services named Service as SRV
// records named Record.
type ServiceMapping struct {
	Service string
	Record  string
}

// Runner performs complete reconciliation runs: it loads the zones, reads
// the inventory and runs the address, service and prune passes in order.
// Runs never overlap.
type Runner struct {
	base
	source   inventory.Source
	root     string
	services []ServiceMapping

	mu sync.Mutex

	stateMu sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewRunner creates a Runner. root is the name of the root zone.
func NewRunner(db store.DB, source inventory.Source, root string, services []ServiceMapping, opts ...Option) *Runner {
	return &Runner{
		base:     newBase(db, nil, opts),
		source:   source,
		root:     root,
		services: services,
	}
}

// Run performs one reconciliation run. The returned Result is never nil.
// Errors are structural: missing root zone, inventory or store failures.
// Per-entry problems are reported as skipped actions.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.NewString()
	logger := r.logger.With(slog.String("run_id", runID))

	result := NewResult(r.config.DryRun)
	result.RunID = runID

	logger.Info("starting reconciliation",
		slog.Bool("dry_run", r.config.DryRun),
		slog.Bool("prune", r.config.Prune),
		slog.String("root", r.root),
	)

	err := r.run(ctx, logger, result)
	result.Complete()

	status := "success"
	if err != nil || result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())

	r.stateMu.Lock()
	r.lastRun = result.EndTime
	r.lastErr = err
	r.stateMu.Unlock()

	if err != nil {
		logger.Error("reconciliation failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", result.Duration()),
		)
		return result, err
	}

	logger.Info("reconciliation complete",
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("deleted", result.DeletedCount()),
		slog.Int("unchanged", len(result.Unchanged())),
		slog.Int("skipped", len(result.Skipped())),
		slog.Duration("duration", result.Duration()),
	)
	return result, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, result *Result) error {
	db := r.db
	if r.config.DryRun {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("dry-run: %w", err)
		}
		defer func() {
			if err := tx.Rollback(); err != nil {
				logger.Error("dry-run rollback failed", slog.String("error", err.Error()))
			}
		}()
		db = dryRunDB{Tx: tx}
	}

	zones, err := db.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}
	index, err := zone.Build(zones, r.root, zone.WithLogger(logger))
	if err != nil {
		return err
	}
	result.ZonesLoaded = index.Len()
	metrics.ZonesLoaded.Set(float64(index.Len()))

	opts := []Option{WithLogger(logger), WithConfig(r.config)}

	var ips []inventory.IPAddress
	err = r.observe(ctx, "ip_addresses", func(ctx context.Context) (err error) {
		ips, err = r.source.IPAddresses(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("reading ip addresses from %s: %w", r.source.Name(), err)
	}
	metrics.InventoryItems.WithLabelValues("ip_addresses").Set(float64(len(ips)))

	addresses := NewAddressReconciler(db, index, opts...)
	pass, err := addresses.BatchUpsert(ctx, ips)
	result.Merge(pass)
	if err != nil {
		return err
	}

	services := NewServiceReconciler(db, index, opts...)
	servicesRead := 0
	for _, m := range r.services {
		var svcs []inventory.Service
		err := r.observe(ctx, "services", func(ctx context.Context) (err error) {
			svcs, err = r.source.Services(ctx, m.Service)
			return err
		})
		if err != nil {
			return fmt.Errorf("reading services %q from %s: %w", m.Service, r.source.Name(), err)
		}
		servicesRead += len(svcs)

		pass, err := services.BatchUpsert(ctx, m.Record, svcs)
		result.Merge(pass)
		if err != nil {
			return err
		}
	}
	metrics.InventoryItems.WithLabelValues("services").Set(float64(servicesRead))

	if !r.config.Prune {
		logger.Debug("prune disabled")
		return nil
	}

	pass, err = addresses.Prune(ctx, NewAddressSet(ips))
	result.Merge(pass)
	return err
}

// dryRunDB shares one outer transaction between the passes of a dry run,
// so each pass reads the writes of the passes before it. Pass commits and
// rollbacks are no-ops; the runner rolls the outer transaction back.
type dryRunDB struct {
	store.Tx
}

func (d dryRunDB) Begin(context.Context) (store.Tx, error) { return d, nil }

func (dryRunDB) Commit() error { return nil }

func (dryRunDB) Rollback() error { return nil }

func (dryRunDB) Close() error { return nil }

// observe times an inventory call and records its outcome.
func (r *Runner) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.InventoryRequestsTotal.WithLabelValues(r.source.Name(), op, status).Inc()
	metrics.InventoryDuration.WithLabelValues(r.source.Name(), op).Observe(time.Since(start).Seconds())
	return err
}

// Wait blocks until no run is in progress.
func (r *Runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
}

// LastRun returns when the last run finished and its error.
func (r *Runner) LastRun() (time.Time, error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.lastRun, r.lastErr
}

// Resolve loads the zones and resolves each name to its zone.
func Resolve(ctx context.Context, st store.Store, root string, names []string, logger *slog.Logger) ([]Resolution, error) {
	zones, err := st.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading zones: %w", err)
	}
	index, err := zone.Build(zones, root, zone.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	out := make([]Resolution, 0, len(names))
	for _, name := range names {
		res := Resolution{Name: name}
		id, err := index.Resolve(name)
		if err != nil {
			res.Err = err
		} else {
			res.ZoneID = id
			res.ZoneName, _ = index.ZoneName(id)
		}
		out = append(out, res)
	}
	return out, nil
}

// Resolution is the zone a name resolves to.
type Resolution struct {
	Name     string
	ZoneID   int64
	ZoneName string
	Err      error
}
