package metrics

import (
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// MultiSink fans allocation records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignments forwards the events to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignments(events []coremetrics.AssignmentEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignments(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun forwards the run snapshot to all sinks.
func (m *MultiSink) RecordRun(run model.SimulationRun) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(run); err != nil {
			return err
		}
	}
	return nil
}
