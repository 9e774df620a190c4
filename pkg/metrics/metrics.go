// Package metrics defines the Prometheus collectors for the relay
// pipeline. All collectors are registered with the default registry and
// exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts parsed inbound commands by type
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_commands_total",
		Help: "Inbound commands by parsed type",
	}, []string{"command"})

	// TransfersTotal counts settlement outcomes
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transfers_total",
		Help: "Stablecoin transfers by outcome",
	}, []string{"outcome"})

	// ReferralsTotal counts recorded referrals
	ReferralsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_referrals_total",
		Help: "Referral records created",
	})

	// BadgeTransactionsTotal counts badge reward transactions
	BadgeTransactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_badge_transactions_total",
		Help: "Badge reward transactions submitted",
	})

	// DuplicateEventsTotal counts short-circuited duplicate deliveries
	DuplicateEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_duplicate_events_total",
		Help: "Inbound events skipped by the processed-event guard",
	})

	// SettlementDuration observes end-to-end settlement latency
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_settlement_duration_seconds",
		Help:    "Time from mint submission to confirmed receipt",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// DatabaseConnectionsGauge tracks pool state, updated by main
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})
)
