package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько занял поход за аналитикой (включая ретраи)
	FetchDuration *prometheus.HistogramVec

	// Traffic: общее кол-во рефрешей
	RefreshTotal *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState prometheus.Gauge

	// Freshness: возраст последнего удачного снапшота
	SnapshotAge prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insights_fetch_duration_seconds",
			Help:    "Histogram of analytics fetch latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"status"}),

		RefreshTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "insights_refresh_total",
			Help: "Total number of snapshot refreshes.",
		}, []string{"result"}), // success, empty, failure

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "insights_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: auth, status, throttle, transport, malformed

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "insights_circuit_breaker_state",
			Help: "Current state of the analytics API circuit breaker (0=closed, 1=open).",
		}),

		SnapshotAge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "insights_snapshot_age_seconds",
			Help: "Seconds since the last successful snapshot refresh.",
		}),
	}
}
