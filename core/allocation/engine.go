// Package allocation implements the greedy order-to-driver allocation
// engine. For each order, every driver in the pool is scored under
// workload, time and regulatory constraints and the cheapest one wins.
// The algorithm is a deliberate simplicity/determinism trade-off: a
// single pass with no backtracking, not a global optimizer.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/notify"
	"github.com/kilianp07/fleetdispatch/core/rules"
	"github.com/kilianp07/fleetdispatch/core/store"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// ErrInvalidInput marks a parameter validation failure. Callers map it to a
// client error; nothing has been mutated when it is returned.
var ErrInvalidInput = errors.New("invalid allocation input")

// startTimeLayout is the wall-clock format accepted for RouteStartTime.
const startTimeLayout = "15:04"

// Engine orchestrates allocation runs against the persistence collaborator.
// Exactly one run is in flight at a time; the mutex also guards the
// process-lifetime "last KPIs" state read by the schedule projection.
type Engine struct {
	fleet    store.FleetStore
	history  store.HistoryStore
	sink     coremetrics.MetricsSink
	bus      eventbus.EventBus
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time
	newRunID func() string

	mu       sync.Mutex
	lastKPIs *model.KPISnapshot
}

// NewEngine creates an engine. fleet, history and log are mandatory; sink
// defaults to a no-op recorder.
func NewEngine(fleet store.FleetStore, history store.HistoryStore, sink coremetrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Engine, error) {
	if fleet == nil || history == nil || log == nil {
		return nil, fmt.Errorf("allocation: nil parameter provided to NewEngine")
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		fleet:    fleet,
		history:  history,
		sink:     sink,
		bus:      bus,
		notifier: notify.Nop{},
		log:      log,
		now:      time.Now,
		newRunID: uuid.NewString,
	}, nil
}

// SetNotifier configures the driver notifier used after successful runs.
func (e *Engine) SetNotifier(n notify.Notifier) {
	if n == nil {
		n = notify.Nop{}
	}
	e.mu.Lock()
	e.notifier = n
	e.mu.Unlock()
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

func validateParams(p model.AllocationParams) error {
	if p.NumAvailableDrivers != nil && *p.NumAvailableDrivers <= 0 {
		return fmt.Errorf("%w: number of available drivers must be positive", ErrInvalidInput)
	}
	if p.MaxHoursPerDriverPerDay != nil && *p.MaxHoursPerDriverPerDay < 0 {
		return fmt.Errorf("%w: max hours per driver per day must not be negative", ErrInvalidInput)
	}
	return nil
}

// dispatchTime resolves the simulated dispatch instant. An unparseable
// start time degrades to "now" with a diagnostic; it never aborts the run.
func (e *Engine) dispatchTime(startTime string, now time.Time) time.Time {
	if startTime == "" {
		return now
	}
	t, err := time.Parse(startTimeLayout, startTime)
	if err != nil {
		e.log.Warnf("invalid route start time %q, using current time: %v", startTime, err)
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

// AssignOrders runs one full allocation cycle: it validates the parameters,
// scores every pool driver for each order in deadline order, replaces the
// whole assignment set atomically and appends one SimulationRun snapshot.
// Orders without a qualifying driver simply stay unassigned.
func (e *Engine) AssignOrders(ctx context.Context, params model.AllocationParams) (model.AllocationResult, error) {
	if err := validateParams(params); err != nil {
		return model.AllocationResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	started := e.now()
	runID := e.newRunID()

	drivers, err := e.fleet.ListDrivers(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return model.AllocationResult{}, fmt.Errorf("load drivers: %w", err)
	}
	if params.NumAvailableDrivers != nil && *params.NumAvailableDrivers < len(drivers) {
		drivers = drivers[:*params.NumAvailableDrivers]
	}

	orders, err := e.fleet.ListOrders(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return model.AllocationResult{}, fmt.Errorf("load orders: %w", err)
	}
	routeList, err := e.fleet.ListRoutes(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return model.AllocationResult{}, fmt.Errorf("load routes: %w", err)
	}
	routes := make(map[string]model.Route, len(routeList))
	for _, r := range routeList {
		routes[r.ID] = r
	}

	// Earliest deadlines get first pick of driver capacity.
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].DeliveryTime.Before(orders[j].DeliveryTime)
	})

	e.publish(events.RunStarted{RunID: runID, Drivers: len(drivers), Orders: len(orders), Time: started})
	driversInPool.Set(float64(len(drivers)))

	dispatchAt := e.dispatchTime(params.RouteStartTime, started)

	workloads := make(map[string]float64, len(drivers))
	byDriver := make(map[string][]string, len(drivers))
	for _, d := range drivers {
		workloads[d.ID] = 0
		byDriver[d.ID] = []string{}
	}

	var (
		assignments []model.Assignment
		asnEvents   []coremetrics.AssignmentEvent
		unassigned  []string
		kpis        model.KPISnapshot
	)

	for _, order := range orders {
		route, ok := routes[order.RouteID]
		if !ok {
			e.log.Warnf("route %s not found for order %s, skipping", order.RouteID, order.ID)
			ordersSkipped.WithLabelValues("missing_route").Inc()
			e.publish(events.OrderSkipped{RunID: runID, OrderID: order.ID, RouteID: order.RouteID, Reason: "missing_route"})
			unassigned = append(unassigned, order.ID)
			continue
		}

		var (
			best     *model.Driver
			bestEst  time.Duration
			minScore float64
		)
		for i := range drivers {
			d := drivers[i]
			est := rules.EstimatedDelivery(route, d)
			potential := workloads[d.ID] + est.Minutes()
			if params.MaxHoursPerDriverPerDay != nil &&
				d.ShiftHoursToday+potential/60 > *params.MaxHoursPerDriverPerDay {
				continue
			}
			score := DriverScore(d, potential)
			if best == nil || score < minScore {
				best = &drivers[i]
				bestEst = est
				minScore = score
			}
		}
		if best == nil {
			// Not an error: a normal outcome under tight constraints.
			ordersSkipped.WithLabelValues("no_driver").Inc()
			e.publish(events.OrderSkipped{RunID: runID, OrderID: order.ID, RouteID: order.RouteID, Reason: "no_driver"})
			unassigned = append(unassigned, order.ID)
			continue
		}

		eta := dispatchAt.Add(bestEst)
		assignments = append(assignments, model.Assignment{
			OrderID:               order.ID,
			DriverID:              best.ID,
			EstimatedDeliveryTime: eta,
			AssignedAt:            dispatchAt,
		})
		workloads[best.ID] += bestEst.Minutes()
		byDriver[best.ID] = append(byDriver[best.ID], order.ID)

		onTime := rules.OnTime(eta, order.DeliveryTime)
		penalty := rules.LatePenalty(eta, order.DeliveryTime)
		bonus := rules.HighValueBonus(order.Value, onTime)
		fuel := rules.FuelCost(route)

		kpis.TotalProfit += order.Value + bonus - penalty - fuel
		kpis.TotalDeliveries++
		if onTime {
			kpis.OnTimeDeliveries++
		}
		kpis.TotalFuelCost += fuel
		kpis.TotalPenalties += penalty
		kpis.TotalBonuses += bonus

		asnEvents = append(asnEvents, coremetrics.AssignmentEvent{
			RunID:    runID,
			OrderID:  order.ID,
			DriverID: best.ID,
			RouteID:  route.ID,
			ETA:      eta,
			OnTime:   onTime,
			Profit:   order.Value + bonus - penalty - fuel,
			FuelCost: fuel,
			Penalty:  penalty,
			Bonus:    bonus,
			Time:     dispatchAt,
		})
	}

	kpis.LateDeliveries = kpis.TotalDeliveries - kpis.OnTimeDeliveries
	if kpis.TotalDeliveries > 0 {
		kpis.EfficiencyScore = float64(kpis.OnTimeDeliveries) / float64(kpis.TotalDeliveries) * 100
	}

	run := model.SimulationRun{
		ID:                      runID,
		Timestamp:               started,
		NumAvailableDrivers:     params.NumAvailableDrivers,
		RouteStartTime:          params.RouteStartTime,
		MaxHoursPerDriverPerDay: params.MaxHoursPerDriverPerDay,
		KPIs:                    kpis,
	}

	// The whole clear-and-rebuild happens in one store transaction so a
	// mid-run failure leaves the previous assignment set intact.
	if err := e.fleet.ApplyAllocation(ctx, assignments); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return model.AllocationResult{}, fmt.Errorf("apply allocation: %w", err)
	}
	if err := e.history.Append(ctx, run); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return model.AllocationResult{}, fmt.Errorf("record simulation run: %w", err)
	}

	snapshot := kpis
	e.lastKPIs = &snapshot

	if err := e.sink.RecordAssignments(asnEvents); err != nil {
		e.log.Warnf("record assignment metrics: %v", err)
	}
	if err := e.sink.RecordRun(run); err != nil {
		e.log.Warnf("record run metrics: %v", err)
	}
	e.notifyDrivers(runID, drivers, byDriver)

	duration := e.now().Sub(started)
	runsTotal.WithLabelValues("ok").Inc()
	ordersAssigned.Add(float64(len(assignments)))
	runDuration.Observe(duration.Seconds())
	e.publish(events.RunCompleted{RunID: runID, Assigned: len(assignments), Unassigned: len(unassigned), Duration: duration})
	e.log.Infof("allocation run %s: %d assigned, %d unassigned, efficiency %.1f%%",
		runID, len(assignments), len(unassigned), kpis.EfficiencyScore)

	return model.AllocationResult{
		RunID:               runID,
		Message:             "orders assigned successfully",
		AssignmentsByDriver: byDriver,
		KPIs:                kpis,
		Workload:            workloadStats(drivers, workloads),
		UnassignedOrders:    unassigned,
	}, nil
}

// workloadStats summarizes how evenly minutes were spread over the pool.
func workloadStats(drivers []model.Driver, workloads map[string]float64) model.WorkloadStats {
	if len(drivers) == 0 {
		return model.WorkloadStats{}
	}
	minutes := make([]float64, 0, len(drivers))
	for _, d := range drivers {
		minutes = append(minutes, workloads[d.ID])
	}
	stats := model.WorkloadStats{MeanMinutes: stat.Mean(minutes, nil)}
	if len(minutes) > 1 {
		stats.StdDevMinutes = stat.StdDev(minutes, nil)
	}
	return stats
}

// notifyDrivers publishes one notification per driver that received work.
// Failures are diagnostics only; the run has already been persisted.
func (e *Engine) notifyDrivers(runID string, drivers []model.Driver, byDriver map[string][]string) {
	for _, d := range drivers {
		orderIDs := byDriver[d.ID]
		if len(orderIDs) == 0 {
			continue
		}
		n := notify.DriverNotification{RunID: runID, DriverID: d.ID, OrderIDs: orderIDs}
		if err := e.notifier.NotifyAssignments(n); err != nil {
			e.log.Warnf("notify driver %s: %v", d.ID, err)
		}
	}
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// Schedule returns the display-ready projection of the current assignment
// set. KPIs come from the most recent run of this process; a fresh process
// reports nil KPIs even when persisted assignments exist.
func (e *Engine) Schedule(ctx context.Context) (model.Schedule, error) {
	assignments, err := e.fleet.ListAssignments(ctx)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("load assignments: %w", err)
	}

	entries := make([]model.ScheduleEntry, 0, len(assignments))
	for _, a := range assignments {
		order, err := e.fleet.GetOrder(ctx, a.OrderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return model.Schedule{}, fmt.Errorf("load order %s: %w", a.OrderID, err)
		}
		driver, err := e.fleet.GetDriver(ctx, a.DriverID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return model.Schedule{}, fmt.Errorf("load driver %s: %w", a.DriverID, err)
		}
		entries = append(entries, model.ScheduleEntry{
			OrderID:               order.ID,
			DriverName:            driver.Name,
			EstimatedDeliveryTime: a.EstimatedDeliveryTime,
			AssignedAt:            a.AssignedAt,
		})
	}

	e.mu.Lock()
	kpis := e.lastKPIs
	e.mu.Unlock()
	return model.Schedule{Entries: entries, KPIs: kpis}, nil
}

// Close releases resources held by the engine.
func (e *Engine) Close() error {
	if e.bus != nil {
		e.bus.Close()
	}
	return e.notifier.Close()
}
