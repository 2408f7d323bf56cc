package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Activity request metrics
	activityRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_activity_requests_total",
		Help: "Total number of activity requests by outcome",
	}, []string{"outcome"})

	activityDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_activity_request_duration_seconds",
		Help:    "Time taken to complete one reconciliation pass",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	holdingsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_holdings_requests_total",
		Help: "Total number of holdings snapshot requests by outcome",
	}, []string{"outcome"})

	// Reconciliation metrics
	eventsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_events_processed_total",
		Help: "Total number of creation events fed through the classifiers",
	})

	depositsLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_deposits_last_run",
		Help: "Deduplicated deposits found by the most recent pass",
	})

	withdrawalsLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_withdrawals_last_run",
		Help: "Deduplicated withdrawals found by the most recent pass",
	})

	holdingsLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_holdings_last_run",
		Help: "Active holdings found by the most recent snapshot",
	})

	ledgerEndGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_ledger_end_offset",
		Help: "Most recently observed ledger end offset",
	})

	streamErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_stream_errors_total",
		Help: "Total number of ledger stream failures",
	})

	tokenRefreshesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_token_refreshes",
		Help: "OAuth2 token refreshes made by this process",
	})
)

// observeActivityRequest records the outcome and duration of one pass.
func observeActivityRequest(outcome string, elapsed time.Duration) {
	activityRequestsTotal.WithLabelValues(outcome).Inc()
	activityDurationHistogram.Observe(elapsed.Seconds())
}

// observeHoldingsRequest records the outcome of one snapshot request.
func observeHoldingsRequest(outcome string) {
	holdingsRequestsTotal.WithLabelValues(outcome).Inc()
}

// setHoldingsLastRun updates the holdings gauge for a snapshot-only request.
func setHoldingsLastRun(count int) {
	holdingsLastRun.Set(float64(count))
}

// updateRunMetrics pushes the counts from a finished pass to Prometheus.
func updateRunMetrics(events int64, deposits, withdrawals, holdings int, ledgerEnd int64) {
	eventsProcessedTotal.Add(float64(events))
	depositsLastRun.Set(float64(deposits))
	withdrawalsLastRun.Set(float64(withdrawals))
	holdingsLastRun.Set(float64(holdings))
	ledgerEndGauge.Set(float64(ledgerEnd))
}

// incrementStreamErrors counts one ledger stream failure.
func incrementStreamErrors() {
	streamErrorsTotal.Inc()
}

// setTokenRefreshes mirrors the credential provider's refresh count.
func setTokenRefreshes(count int64) {
	tokenRefreshesGauge.Set(float64(count))
}
