// Package telemetry declares Prometheus counters/histograms for ingestion,
// sync worker, quota ledger, and work queue depth, the /metrics handler,
// and otelhttp tracing helpers. Only FleetSize and FleetCPUMillicores are
// set anywhere in this module (by kubefleet); the ingestion, worker, ledger
// and queue metrics are registered and exported but never updated.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "rmirror_ingestion_upload_duration_seconds",
		Help: "Duration of the full upload-handling algorithm (spec §4.7).",
	}, []string{"status"})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rmirror_ingestion_upload_bytes",
		Help:    "Size of uploaded blobs.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	OCRDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rmirror_ingestion_ocr_duration_ms",
		Help:    "OCR call duration in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(50, 2, 12),
	})

	HashHitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmirror_ingestion_hash_total",
		Help: "Content-hash dedup hit/miss count (spec §4.7 step 7).",
	}, []string{"result"}) // "hit" | "miss"

	WorkQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rmirror_workqueue_depth",
		Help: "Current work_items count by status.",
	}, []string{"status"}) // "queued" | "leased"

	SyncAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmirror_syncworker_attempts_total",
		Help: "Sync worker attempts by destination and outcome.",
	}, []string{"destination", "outcome"}) // outcome: "ok" | "retry" | "failed"

	QuotaThresholdEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmirror_quota_threshold_events_total",
		Help: "QuotaThresholdCrossed events recorded, by threshold.",
	}, []string{"threshold"})

	// FleetSize is informational only (SPEC_FULL.md §C.4) — never read back
	// by any coordination path; lease/claim stays DB-level per spec §9.
	FleetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rmirror_syncworker_fleet_size",
		Help: "Count of ready sibling sync-worker pods, informational only.",
	})

	// FleetCPUMillicores mirrors FleetSize's informational-only status,
	// sourced from metrics-server when present (SPEC_FULL.md §C.4).
	FleetCPUMillicores = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rmirror_syncworker_fleet_cpu_millicores",
		Help: "Aggregate CPU usage across sibling sync-worker pods, informational only.",
	})
)

// Handler exposes the /metrics scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

// WrapTransport wraps rt with OpenTelemetry tracing for outbound requests.
func WrapTransport(rt http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(rt)
}

// WrapHandler adds OpenTelemetry tracing spans to the inbound server
// router (spec SPEC_FULL.md §A).
func WrapHandler(name string, h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, name)
}
