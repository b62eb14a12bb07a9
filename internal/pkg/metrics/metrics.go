package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_ledger_ops_total",
		Help: "The total number of ledger operations processed",
	}, []string{"ledger", "op", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	KeeperCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_keeper_cycles_total",
		Help: "Keeper cycles by task and outcome",
	}, []string{"task", "status"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_risk_rejects_total",
		Help: "Total ledger precondition rejections",
	}, []string{"reason"})

	NAVPerToken = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aegis_nav_per_token_micro",
		Help: "Current NAV per token in micro-units",
	}, []string{"pool"})

	HealthFactor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aegis_health_factor_micro",
		Help: "Cached strategy health factor in micro-units",
	}, []string{"strategy"})

	CurrentLTV = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aegis_ltv_bps",
		Help: "Strategy loan-to-value in basis points",
	}, []string{"strategy"})
)
