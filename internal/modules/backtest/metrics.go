package backtest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the backtest Prometheus collectors.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	OptimizerFallback *prometheus.CounterVec
	PublishErrors     prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtester",
			Name:      "runs_total",
			Help:      "Backtest runs by objective and outcome",
		}, []string{"objective", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "backtester",
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful backtest runs",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"objective"}),
		OptimizerFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtester",
			Name:      "optimizer_fallbacks_total",
			Help:      "Rebalance periods that fell back to equal weights",
		}, []string{"objective"}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "backtester",
			Name:      "publish_errors_total",
			Help:      "Report exports that failed",
		}),
	}
}
