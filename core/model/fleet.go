package model

import (
	"fmt"
	"strings"
	"time"
)

// TrafficLevel classifies expected congestion on a route. Values are
// case-folded before any lookup; unknown levels fall back to a default
// time factor rather than failing.
type TrafficLevel string

const (
	TrafficLow    TrafficLevel = "low"
	TrafficMedium TrafficLevel = "medium"
	TrafficHigh   TrafficLevel = "high"
)

// Normalize returns the case-folded traffic level used as a lookup key.
func (t TrafficLevel) Normalize() TrafficLevel {
	return TrafficLevel(strings.ToLower(strings.TrimSpace(string(t))))
}

// Driver is a delivery driver and its recorded working hours. The persisted
// fields are immutable within one allocation pass; only the engine's
// in-memory workload tracker changes during a run.
type Driver struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	ShiftHoursToday     float64 `json:"shift_hours_today"`
	HoursWorkedPastWeek float64 `json:"hours_worked_past_week"`
}

// WeeklyAverageHours is the mean daily working time over the past seven days.
func (d Driver) WeeklyAverageHours() float64 {
	return d.HoursWorkedPastWeek / 7
}

// Validate checks that the driver record is sound.
func (d Driver) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("driver id must not be empty")
	}
	if d.ShiftHoursToday < 0 {
		return fmt.Errorf("driver %s: shift hours must not be negative", d.ID)
	}
	if d.HoursWorkedPastWeek < 0 {
		return fmt.Errorf("driver %s: past week hours must not be negative", d.ID)
	}
	return nil
}

// Route is immutable reference data describing one delivery route.
type Route struct {
	ID              string       `json:"id"`
	DistanceKm      float64      `json:"distance_km"`
	TrafficLevel    TrafficLevel `json:"traffic_level"`
	BaseTimeMinutes int          `json:"base_time_minutes"`
}

// Validate checks that the route reference data is usable.
func (r Route) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("route id must not be empty")
	}
	if r.DistanceKm <= 0 {
		return fmt.Errorf("route %s: distance must be positive", r.ID)
	}
	if r.BaseTimeMinutes <= 0 {
		return fmt.Errorf("route %s: base time must be positive", r.ID)
	}
	return nil
}

// Order is a customer delivery request. AssignedDriverID is the only field
// the allocation engine mutates, and only during a run.
type Order struct {
	ID               string    `json:"id"`
	Value            float64   `json:"value"`
	RouteID          string    `json:"route_id"`
	DeliveryTime     time.Time `json:"delivery_time"`
	AssignedDriverID *string   `json:"assigned_driver_id,omitempty"`
}

// Assigned reports whether the order currently has a driver.
func (o Order) Assigned() bool { return o.AssignedDriverID != nil }
