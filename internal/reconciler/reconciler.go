package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexbarcelo/netbox-dns-handler/internal/matcher"
	"github.com/alexbarcelo/netbox-dns-handler/internal/metrics"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// Record defaults.
const (
	DefaultTTL       = 3600
	DefaultPriority  = 0
	DefaultSRVWeight = 1
)

// ZoneSource selects which string the service reconciler resolves the zone
// of a new SRV record from.
type ZoneSource string

const (
	// ZoneFromContent resolves the zone from the composed content
	// "<weight> <port> <target>", which effectively picks the target's
	// zone. This is the default and matches existing databases.
	ZoneFromContent ZoneSource = "content"
	// ZoneFromRecordName resolves the zone from the SRV record name.
	ZoneFromRecordName ZoneSource = "record-name"
)

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, runs every pass and rolls it back.
	DryRun bool

	// TTL and Priority are set on inserted records.
	TTL      int
	Priority int

	// SRVWeight is the weight field of SRV content.
	SRVWeight int

	// ServiceZoneSource picks the zone resolution input for new SRV records.
	ServiceZoneSource ZoneSource

	// Prune enables deletion of address records absent from the inventory.
	Prune bool

	// PruneScope limits which record names the prune may delete. Nil means
	// every address record is in scope.
	PruneScope *matcher.DomainMatcher
}

// DefaultConfig returns a Config with the standard record defaults.
func DefaultConfig() Config {
	return Config{
		TTL:               DefaultTTL,
		Priority:          DefaultPriority,
		SRVWeight:         DefaultSRVWeight,
		ServiceZoneSource: ZoneFromContent,
		Prune:             true,
	}
}

// Option is a functional option for configuring the reconcilers.
type Option func(*base)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(b *base) {
		b.config = cfg
	}
}

// base carries what the address and service reconcilers share.
type base struct {
	db     store.DB
	index  *zone.Index
	config Config
	logger *slog.Logger
}

func newBase(db store.DB, index *zone.Index, opts []Option) base {
	b := base{
		db:     db,
		index:  index,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Config returns the active configuration.
func (b *base) Config() Config {
	return b.config
}

// inTx runs fn in a transaction. The transaction is committed when fn
// succeeds, and rolled back when fn fails or in dry-run mode.
func (b *base) inTx(ctx context.Context, pass string, result *Result, fn func(tx store.Store) error) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s pass: %w", pass, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.logger.Error("rollback failed",
				slog.String("pass", pass),
				slog.String("error", rbErr.Error()),
			)
		}
		result.RolledBack = true
		b.logger.Warn("pass rolled back", slog.String("pass", pass), slog.String("error", err.Error()))
		return fmt.Errorf("%s pass: %w", pass, err)
	}

	if b.config.DryRun {
		b.logger.Info("dry-run: discarding pass changes", slog.String("pass", pass))
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("%s pass: %w", pass, err)
		}
		return nil
	}

	if err := tx.Commit(); err != nil {
		result.RolledBack = true
		return fmt.Errorf("%s pass: commit: %w", pass, err)
	}
	return nil
}

// recordMetrics records Prometheus metrics from a pass result.
func recordMetrics(result *Result) {
	for _, action := range result.Actions {
		rtype := string(action.RecordType)
		switch action.Status {
		case StatusFailed:
			metrics.RecordsFailedTotal.WithLabelValues(rtype, string(action.Type)).Inc()
			continue
		case StatusSkipped:
			reason := action.Reason
			if reason == "" {
				reason = "unknown"
			}
			metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
			continue
		case StatusSuccess:
		default:
			continue
		}

		switch action.Type {
		case ActionCreate:
			metrics.RecordsCreatedTotal.WithLabelValues(rtype).Inc()
		case ActionUpdate:
			metrics.RecordsUpdatedTotal.WithLabelValues(rtype).Inc()
		case ActionDelete:
			metrics.RecordsDeletedTotal.WithLabelValues(rtype).Inc()
		}
	}
}
