// Package metrics declares the Prometheus instruments of the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote API metrics
	APICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_api_calls_total",
			Help: "Remote method invocations by final outcome",
		},
		[]string{"method", "outcome"}, // "ok", "remote_error", "transport_error", "exhausted"
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vksync_api_call_duration_seconds",
			Help:    "Duration of a remote call chain including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_api_retries_total",
			Help: "Retries of remote calls by reason",
		},
		[]string{"reason"}, // "auth", "rate_limit", "flood", "transient"
	)

	// Storage metrics
	Transactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_db_transactions_total",
			Help: "Database transactions by name and outcome",
		},
		[]string{"name", "outcome"}, // "committed", "rolled_back", "begin_failed"
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vksync_breaker_state",
			Help: "Transport circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Credential metrics
	CredentialRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_credential_refreshes_total",
			Help: "Credential refresh attempts by result",
		},
		[]string{"provider", "result"},
	)

	CredentialBackoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_credential_backoffs_total",
			Help: "Times every credential was excluded and the rotator backed off",
		},
		[]string{"provider"},
	)

	// Sync metrics
	RecordsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_records_reconciled_total",
			Help: "Records persisted by the reconciler",
		},
		[]string{"entity", "result"}, // "created", "updated", "recovered", "error"
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_records_skipped_total",
			Help: "Records dropped from a page during parsing",
		},
		[]string{"entity", "reason"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vksync_pages_fetched_total",
			Help: "Pages requested by the pagination driver",
		},
		[]string{"kind"}, // "page", "extra"
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
