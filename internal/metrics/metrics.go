// Package metrics provides Prometheus metrics for netbox-dns-handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "netbox_dns_handler"

var (
	// BuildInfo exposes the running version as labels on a constant 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "go_version"})

	// ReconciliationsTotal counts reconciliation runs by outcome.
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reconciliations_total",
		Help:      "Total number of reconciliation runs.",
	}, []string{"status"})

	// ReconciliationDuration observes the wall time of a full run.
	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "reconciliation_duration_seconds",
		Help:      "Duration of reconciliation runs.",
		Buckets:   prometheus.DefBuckets,
	})

	// PassDuration observes the wall time of a single pass.
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "pass_duration_seconds",
		Help:      "Duration of reconciliation passes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pass"})

	// ZonesLoaded is the number of zones in the index of the last run.
	ZonesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "zones_loaded",
		Help:      "Number of zones in the zone index.",
	})

	// InventoryItems is the number of inventory items read in the last run.
	InventoryItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "inventory_items",
		Help:      "Number of inventory items read in the last run.",
	}, []string{"kind"})

	// RecordsCreatedTotal counts inserted records.
	RecordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_created_total",
		Help:      "Total number of records created.",
	}, []string{"record_type"})

	// RecordsUpdatedTotal counts records whose content was rewritten.
	RecordsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_updated_total",
		Help:      "Total number of records updated.",
	}, []string{"record_type"})

	// RecordsDeletedTotal counts pruned records.
	RecordsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_deleted_total",
		Help:      "Total number of records deleted.",
	}, []string{"record_type"})

	// RecordsSkippedTotal counts skipped inventory entries and records.
	RecordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_skipped_total",
		Help:      "Total number of records skipped.",
	}, []string{"reason"})

	// RecordsFailedTotal counts failed record operations.
	RecordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_failed_total",
		Help:      "Total number of failed record operations.",
	}, []string{"record_type", "action"})

	// InventoryRequestsTotal counts inventory calls by operation and outcome.
	InventoryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "inventory_requests_total",
		Help:      "Total number of inventory requests.",
	}, []string{"source", "operation", "status"})

	// InventoryDuration observes inventory call latency.
	InventoryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "inventory_request_duration_seconds",
		Help:      "Duration of inventory requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "operation"})

	// ComponentHealthy is 1 when the last readiness check of a component passed.
	ComponentHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "component_healthy",
		Help:      "Whether a component passed its last readiness check.",
	}, []string{"component"})
)

// SetBuildInfo records the build version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
