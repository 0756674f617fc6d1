package model

import "time"

// Assignment links one order to one driver for the current plan. The whole
// assignment set is discarded and rebuilt on every allocation run; history
// lives only in SimulationRun snapshots.
type Assignment struct {
	OrderID               string    `json:"order_id"`
	DriverID              string    `json:"driver_id"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
	AssignedAt            time.Time `json:"assigned_at"`
}

// AllocationParams are the caller-supplied inputs of one allocation run.
// All fields are optional; nil means "no constraint".
type AllocationParams struct {
	// NumAvailableDrivers caps the pool to the first N drivers in their
	// stable load order. Must be positive when set.
	NumAvailableDrivers *int `json:"num_available_drivers,omitempty"`
	// RouteStartTime is a wall-clock HH:MM treated as "now" for ETA
	// purposes. An unparseable value degrades to the current instant.
	RouteStartTime string `json:"route_start_time,omitempty"`
	// MaxHoursPerDriverPerDay is a hard cap on shift hours plus assigned
	// workload. Must not be negative when set.
	MaxHoursPerDriverPerDay *float64 `json:"max_hours_per_driver_per_day,omitempty"`
}

// KPISnapshot aggregates the financial and efficiency totals of one run.
type KPISnapshot struct {
	TotalProfit      float64 `json:"total_profit"`
	EfficiencyScore  float64 `json:"efficiency_score"`
	TotalDeliveries  int     `json:"total_deliveries"`
	OnTimeDeliveries int     `json:"on_time_deliveries"`
	LateDeliveries   int     `json:"late_deliveries"`
	TotalFuelCost    float64 `json:"total_fuel_cost"`
	TotalPenalties   float64 `json:"total_penalties"`
	TotalBonuses     float64 `json:"total_bonuses"`
}

// WorkloadStats describes how evenly the run spread work across the pool.
type WorkloadStats struct {
	MeanMinutes   float64 `json:"mean_minutes"`
	StdDevMinutes float64 `json:"stddev_minutes"`
}

// AllocationResult is the summary returned to the caller of a run.
type AllocationResult struct {
	RunID               string              `json:"run_id"`
	Message             string              `json:"message"`
	AssignmentsByDriver map[string][]string `json:"assignments"`
	KPIs                KPISnapshot         `json:"kpis"`
	Workload            WorkloadStats       `json:"workload"`
	UnassignedOrders    []string            `json:"unassigned_orders,omitempty"`
}

// SimulationRun is an immutable, append-only snapshot of one allocation
// invocation: its input parameters, resulting KPIs and timestamp.
type SimulationRun struct {
	ID                      string      `json:"id"`
	Timestamp               time.Time   `json:"timestamp"`
	NumAvailableDrivers     *int        `json:"num_available_drivers,omitempty"`
	RouteStartTime          string      `json:"route_start_time,omitempty"`
	MaxHoursPerDriverPerDay *float64    `json:"max_hours_per_driver_per_day,omitempty"`
	KPIs                    KPISnapshot `json:"kpis"`
}

// ScheduleEntry is one row of the denormalized schedule projection.
type ScheduleEntry struct {
	OrderID               string    `json:"order_id"`
	DriverName            string    `json:"driver_name"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
	AssignedAt            time.Time `json:"assigned_at"`
}

// Schedule is the read-side projection of the current assignment set. KPIs
// is nil until the first allocation run of this process completes.
type Schedule struct {
	Entries []ScheduleEntry `json:"schedule"`
	KPIs    *KPISnapshot    `json:"kpis"`
}
