package allocation

import "github.com/kilianp07/fleetdispatch/core/model"

// DriverScore converts a driver's committed hours and hypothetical workload
// into a single comparable load metric. Lower is better. It blends today's
// shift, the weekly-average daily load and the minutes this order would
// add; it is a load-balancing heuristic, not an ETA.
func DriverScore(driver model.Driver, hypotheticalWorkloadMinutes float64) float64 {
	return driver.ShiftHoursToday*60 +
		driver.HoursWorkedPastWeek*60/7 +
		hypotheticalWorkloadMinutes
}
