// Package events defines the notifications published on the internal event
// bus during an allocation run.
package events

import "time"

// RunStarted is published when an allocation run begins.
type RunStarted struct {
	RunID   string
	Drivers int
	Orders  int
	Time    time.Time
}

// OrderSkipped is published when an order is left unassigned.
// Reason is "missing_route" or "no_driver".
type OrderSkipped struct {
	RunID   string
	OrderID string
	RouteID string
	Reason  string
}

// RunCompleted is published after the outcome has been persisted.
type RunCompleted struct {
	RunID      string
	Assigned   int
	Unassigned int
	Duration   time.Duration
}
