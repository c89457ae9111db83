// Package metrics holds the prometheus collectors for redemptions, credits, ledger retries and clicks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Redemption outcomes, labelled by error kind ("ok" on success).
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Total number of redemption attempts by outcome",
		},
		[]string{"outcome"},
	)
	RedemptionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coupon_redemption_duration_seconds",
			Help:    "Duration of redemption transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Credits paid out, labelled by audit category.
	CreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_credits_total",
			Help: "Total credits distributed by category",
		},
		[]string{"category"},
	)

	LedgerRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_tx_retries_total",
			Help: "Total number of ledger transactions retried after a conflict",
		},
	)

	ClicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_clicks_total",
			Help: "Total number of recorded coupon clicks",
		},
	)
	ClickFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_click_failures_total",
			Help: "Total number of coupon clicks that could not be recorded",
		},
	)
)

// Register adds every collector plus the Go and process collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RedemptionsTotal,
		RedemptionDuration,
		CreditsTotal,
		LedgerRetriesTotal,
		ClicksTotal,
		ClickFailuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
