// Package rules implements the company delivery rules as pure functions:
// time estimation, lateness penalty, high-value bonus, fuel cost and
// per-order profit. All constants are fixed business policy.
package rules

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

const (
	// AvgSpeedKmh is the assumed fleet-wide travel speed.
	AvgSpeedKmh = 30.0

	// FatigueThresholdHours is the daily (and weekly-average) limit above
	// which a driver is considered fatigued.
	FatigueThresholdHours = 8.0
	// FatigueTimeFactor inflates the time estimate for fatigued drivers.
	FatigueTimeFactor = 0.30

	// LateDeliveryPenalty is charged when the ETA exceeds the requested
	// delivery time by more than LateGrace.
	LateDeliveryPenalty = 50.0
	// LateGrace is the tolerance before the penalty applies. Note this is
	// wider than the on-time test, which has no tolerance at all: an order
	// can miss the on-time test and still avoid the penalty.
	LateGrace = 10 * time.Minute

	// HighValueThreshold is the order value above which an on-time
	// delivery earns a bonus.
	HighValueThreshold = 1000.0
	// HighValueBonusRate is the bonus as a fraction of the order value.
	HighValueBonusRate = 0.10

	// BaseFuelCostPerKm applies to every route.
	BaseFuelCostPerKm = 5.0
	// HighTrafficSurchargePerKm applies on top for high-traffic routes.
	HighTrafficSurchargePerKm = 2.0

	// defaultTrafficFactor is used for unrecognized traffic levels.
	defaultTrafficFactor = 0.20
)

var trafficFactors = map[model.TrafficLevel]float64{
	model.TrafficLow:    0.10,
	model.TrafficMedium: 0.30,
	model.TrafficHigh:   0.60,
}

// TrafficFactor returns the base-time multiplier increment for a traffic
// level. The level is case-folded first; unknown levels get the default.
func TrafficFactor(level model.TrafficLevel) float64 {
	if f, ok := trafficFactors[level.Normalize()]; ok {
		return f
	}
	return defaultTrafficFactor
}

// EstimatedDelivery returns the expected travel time for a route when
// driven by the given driver. Fatigue is driver-specific: working more
// than the threshold today, or on weekly average, slows the delivery.
func EstimatedDelivery(route model.Route, driver model.Driver) time.Duration {
	factor := 1 + TrafficFactor(route.TrafficLevel)
	travelMinutes := route.DistanceKm / AvgSpeedKmh * 60

	minutes := float64(route.BaseTimeMinutes)*factor + travelMinutes
	if Fatigued(driver) {
		minutes *= 1 + FatigueTimeFactor
	}
	return time.Duration(minutes * float64(time.Minute))
}

// Fatigued reports whether the fatigue rule applies to the driver.
func Fatigued(driver model.Driver) bool {
	return driver.ShiftHoursToday > FatigueThresholdHours ||
		driver.WeeklyAverageHours() > FatigueThresholdHours
}

// OnTime reports whether an ETA meets the requested delivery time.
// Arriving exactly on the deadline counts as on time.
func OnTime(eta, deadline time.Time) bool {
	return !eta.After(deadline)
}

// LatePenalty returns the penalty for an ETA past the deadline plus grace.
func LatePenalty(eta, deadline time.Time) float64 {
	if eta.After(deadline.Add(LateGrace)) {
		return LateDeliveryPenalty
	}
	return 0
}

// HighValueBonus returns the bonus earned by an on-time high-value order.
func HighValueBonus(value float64, onTime bool) float64 {
	if value > HighValueThreshold && onTime {
		return value * HighValueBonusRate
	}
	return 0
}

// FuelCost returns the fuel cost of a route, including the high-traffic
// surcharge when it applies.
func FuelCost(route model.Route) float64 {
	cost := route.DistanceKm * BaseFuelCostPerKm
	if route.TrafficLevel.Normalize() == model.TrafficHigh {
		cost += route.DistanceKm * HighTrafficSurchargePerKm
	}
	return cost
}

// OrderProfit combines value, bonus, penalty and fuel cost for one order
// delivered at the given ETA.
func OrderProfit(order model.Order, route model.Route, eta time.Time) float64 {
	onTime := OnTime(eta, order.DeliveryTime)
	bonus := HighValueBonus(order.Value, onTime)
	penalty := LatePenalty(eta, order.DeliveryTime)
	return order.Value + bonus - penalty - FuelCost(route)
}
