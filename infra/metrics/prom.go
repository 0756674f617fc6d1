// Package metrics provides MetricsSink implementations exporting
// allocation outcomes to Prometheus and InfluxDB.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// PromSink records allocation outcomes in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	profit      prometheus.Gauge
	efficiency  prometheus.Gauge
	fuelCost    prometheus.Gauge
}

// NewPromSink registers allocation metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_events_total",
		Help: "Total number of order assignments",
	}, []string{"driver_id", "on_time"})
	profit := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_last_run_profit",
		Help: "Total profit of the most recent allocation run",
	})
	efficiency := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_last_run_efficiency_percent",
		Help: "On-time percentage of the most recent allocation run",
	})
	fuel := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_last_run_fuel_cost",
		Help: "Total fuel cost of the most recent allocation run",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&profit, &efficiency, &fuel} {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}

	return &PromSink{assignments: assignments, profit: profit, efficiency: efficiency, fuelCost: fuel}, nil
}

// RecordAssignments increments the counter for each assignment decision.
func (s *PromSink) RecordAssignments(events []coremetrics.AssignmentEvent) error {
	for _, ev := range events {
		s.assignments.WithLabelValues(ev.DriverID, strconv.FormatBool(ev.OnTime)).Inc()
	}
	return nil
}

// RecordRun publishes the run-level KPI gauges.
func (s *PromSink) RecordRun(run model.SimulationRun) error {
	s.profit.Set(run.KPIs.TotalProfit)
	s.efficiency.Set(run.KPIs.EfficiencyScore)
	s.fuelCost.Set(run.KPIs.TotalFuelCost)
	return nil
}
