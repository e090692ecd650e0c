package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provision_total",
			Help: "Provisioning sagas by terminal outcome",
		},
		[]string{"outcome"},
	)

	ProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provision_duration_seconds",
			Help:    "End-to-end provisioning saga duration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	CompensationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_compensation_failures_total",
			Help: "Compensations that themselves failed and left orphaned resources",
		},
	)

	DeprovisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_deprovision_total",
			Help: "Deprovisioning attempts by outcome",
		},
		[]string{"outcome"},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current depth of the lifecycle audit queue",
		},
	)

	AuditProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_processed_total",
			Help: "Lifecycle events persisted by the audit consumer",
		},
		[]string{"event"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(ProvisionTotal)
	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(CompensationFailures)
	prometheus.MustRegister(DeprovisionTotal)
	prometheus.MustRegister(AuditQueueDepth)
	prometheus.MustRegister(AuditProcessed)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
