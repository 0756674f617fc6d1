// Package metrics defines the observability records emitted by the
// allocation engine and the sink interface used to export them.
package metrics

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// AssignmentEvent describes one order-to-driver decision of a run.
type AssignmentEvent struct {
	RunID    string
	OrderID  string
	DriverID string
	RouteID  string
	ETA      time.Time
	OnTime   bool
	Profit   float64
	FuelCost float64
	Penalty  float64
	Bonus    float64
	Time     time.Time
}

// MetricsSink records allocation outcomes for observability purposes.
type MetricsSink interface {
	RecordAssignments(events []AssignmentEvent) error
	RecordRun(run model.SimulationRun) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentEvent) error { return nil }
func (NopSink) RecordRun(model.SimulationRun) error       { return nil }
