package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CreditsPurchased counts credits minted from verified on-chain purchases
	CreditsPurchased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_purchased_total",
			Help: "Total number of credits minted from on-chain purchases",
		},
	)

	// CreditsSpent counts credits debited for chapter unlocks
	CreditsSpent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_spent_total",
			Help: "Total number of credits spent on chapter unlocks",
		},
	)

	// CreditsAdjusted counts admin adjustments by direction
	CreditsAdjusted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_adjusted_total",
			Help: "Total absolute credits changed by admin adjustments",
		},
		[]string{"direction"},
	)

	// UnlocksTotal counts unlock requests by outcome
	UnlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapter_unlocks_total",
			Help: "Total number of chapter unlock requests by outcome",
		},
		[]string{"outcome"},
	)

	// PaymentVerifications counts purchase verifications by result
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Total number of purchase verifications by result",
		},
		[]string{"result"},
	)

	// ChainRPCDuration tracks receipt lookup latency
	ChainRPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_rpc_duration_seconds",
			Help:    "Chain RPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ChainBreakerState is 0 closed, 1 half-open, 2 open
	ChainBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chain_rpc_breaker_state",
			Help: "Circuit breaker state of the chain RPC client",
		},
	)

	// LedgerRetries counts write conflicts retried by the ledger
	LedgerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_conflict_retries_total",
			Help: "Total number of ledger operations retried after a write conflict",
		},
		[]string{"operation"},
	)

	// ReconciliationDrift tracks the absolute drift repaired by reconciliation
	ReconciliationDrift = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_reconciliation_drift",
			Help:    "Absolute difference between cached and ledger balance found by reconciliation",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
	)

	// NoncesSwept counts expired SIWE nonces deleted by maintenance
	NoncesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siwe_nonces_swept_total",
			Help: "Total number of expired sign-in nonces deleted",
		},
	)

	// SignIns counts SIWE verification attempts by result
	SignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siwe_sign_ins_total",
			Help: "Total number of sign-in verifications by result",
		},
		[]string{"result"},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
