package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks DynDNS2 update requests by response token
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_updates_total",
		Help: "Total number of DynDNS2 update requests by result code",
	}, []string{"result", "auth_method"})

	// UpdateDuration tracks end-to-end update handling time
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ddns_update_duration_seconds",
		Help:    "Histogram of update request processing duration",
		Buckets: prometheus.DefBuckets,
	})

	// KeyValidations tracks API key checks (valid, invalid, error)
	KeyValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_key_validations_total",
		Help: "Total number of API key validations",
	}, []string{"result"})

	// AuditFailures counts history rows that could not be written
	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ddns_audit_failures_total",
		Help: "Total number of update history writes that failed",
	})

	// ProviderOperations tracks calls to the DNS provider
	ProviderOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_provider_operations_total",
		Help: "Total number of DNS provider operations",
	}, []string{"provider", "op", "result"})

	// DBConnectionsActive tracks open database connections
	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ddns_db_connections_active",
		Help: "Number of active database connections",
	})
)

// Outcome turns an error into the "ok"/"error" label used by the counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
