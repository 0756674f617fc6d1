package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal      *prometheus.CounterVec
	ordersAssigned prometheus.Counter
	ordersSkipped  *prometheus.CounterVec
	runDuration    prometheus.Histogram
	driversInPool  prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_runs_total",
			Help: "Number of allocation runs by outcome",
		},
		[]string{"outcome"},
	)
	assigned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_orders_assigned_total",
			Help: "Number of orders matched to a driver",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_orders_skipped_total",
			Help: "Number of orders left unassigned by reason",
		},
		[]string{"reason"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_run_duration_seconds",
			Help:    "Wall-clock duration of a full allocation run",
			Buckets: prometheus.DefBuckets,
		},
	)
	pool := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocation_driver_pool_size",
			Help: "Number of drivers considered in the last run",
		},
	)
	return runs, assigned, skipped, dur, pool
}

func init() {
	runsTotal, ordersAssigned, ordersSkipped, runDuration, driversInPool = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{runsTotal, ordersAssigned, ordersSkipped, runDuration, driversInPool} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
