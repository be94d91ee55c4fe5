// Package metrics содержит метрики Prometheus сервиса контроля уровней продавцов.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ScanRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "late_shipment_scan_runs_total",
			Help: "Total number of late-shipment scan runs by outcome",
		},
		[]string{"outcome"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "late_shipment_scan_duration_seconds",
			Help:    "Duration of late-shipment scan runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrdersFlaggedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_flagged_late_total",
			Help: "Total number of orders flagged as late",
		},
	)

	OrderUpdateFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_update_failures_total",
			Help: "Total number of failed late-flag order updates",
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seller_tier_evaluations_total",
			Help: "Total number of seller tier evaluations by resulting tier",
		},
		[]string{"tier"},
	)

	EvaluationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seller_tier_evaluation_failures_total",
			Help: "Total number of failed seller tier evaluations",
		},
	)

	TierChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seller_tier_changes_total",
			Help: "Total number of seller tier changes by new tier",
		},
		[]string{"tier"},
	)
)

// Register регистрирует все метрики в реестре Prometheus по умолчанию.
func Register() {
	prometheus.MustRegister(ScanRunsTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(OrdersFlaggedTotal)
	prometheus.MustRegister(OrderUpdateFailuresTotal)
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EvaluationFailuresTotal)
	prometheus.MustRegister(TierChangesTotal)
}
