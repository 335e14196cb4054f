// Package metrics exposes Prometheus metrics for reconcile passes, alert
// transitions and inventory source fetches.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "mel_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultAborted = "aborted"
)

var (
	registerOnce sync.Once

	reconcilePasses   *prometheus.CounterVec
	reconcileLatency  prometheus.Histogram
	ruleFailures      prometheus.Counter
	alertTransitions  *prometheus.CounterVec
	activeAlerts      prometheus.Gauge
	sourceFetches     *prometheus.CounterVec
	sourceLatency     *prometheus.HistogramVec
	sourceRecordCount *prometheus.GaugeVec
)

// Init registers the metrics with the default registerer. Later calls are no-ops.
func Init() {
	registerOnce.Do(func() {
		reconcilePasses = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_passes_total",
				Help: "Total reconcile passes by result",
			},
			[]string{"result"},
		)
		reconcileLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_duration_seconds",
				Help:    "Reconcile pass duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		ruleFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_evaluation_failures_total",
				Help: "Total rule evaluations that failed and left their alert untouched",
			},
		)
		alertTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_transitions_total",
				Help: "Total alert transitions by kind",
			},
			[]string{"transition"},
		)
		activeAlerts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alerts",
				Help: "Active MEL alerts after the last reconcile pass",
			},
		)
		sourceFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_fetches_total",
				Help: "Total inventory source fetches by source and result",
			},
			[]string{"source", "result"},
		)
		sourceLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "source_fetch_duration_seconds",
				Help:    "Inventory source fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		sourceRecordCount = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "source_records",
				Help: "Records returned by the last successful fetch",
			},
			[]string{"source"},
		)

		prometheus.MustRegister(
			reconcilePasses,
			reconcileLatency,
			ruleFailures,
			alertTransitions,
			activeAlerts,
			sourceFetches,
			sourceLatency,
			sourceRecordCount,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveReconcile records one reconcile pass.
func ObserveReconcile(result string, duration time.Duration) {
	if reconcilePasses == nil {
		return
	}
	reconcilePasses.WithLabelValues(result).Inc()
	reconcileLatency.Observe(duration.Seconds())
}

// AddRuleFailures counts failed rule evaluations.
func AddRuleFailures(n int) {
	if ruleFailures == nil || n <= 0 {
		return
	}
	ruleFailures.Add(float64(n))
}

// AddAlertTransitions counts created, updated or resolved alerts.
func AddAlertTransitions(transition string, n int) {
	if alertTransitions == nil || n <= 0 {
		return
	}
	alertTransitions.WithLabelValues(transition).Add(float64(n))
}

// SetActiveAlerts sets the active alert gauge.
func SetActiveAlerts(n int) {
	if activeAlerts == nil {
		return
	}
	activeAlerts.Set(float64(n))
}

// ObserveSourceFetch records one fetch against an inventory source.
func ObserveSourceFetch(source, result string, duration time.Duration, records int) {
	if sourceFetches == nil {
		return
	}
	sourceFetches.WithLabelValues(source, result).Inc()
	sourceLatency.WithLabelValues(source).Observe(duration.Seconds())
	if result == ResultSuccess {
		sourceRecordCount.WithLabelValues(source).Set(float64(records))
	}
}
