// Package store defines the persistence interfaces the allocation engine
// depends on. Implementations live under infra/store and infra/history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FleetStore persists drivers, routes, orders and the current assignment
// set. Listing methods return records in a stable insertion order; the
// engine relies on that order when capping the driver pool.
type FleetStore interface {
	ListDrivers(ctx context.Context) ([]model.Driver, error)
	GetDriver(ctx context.Context, id string) (model.Driver, error)
	UpsertDriver(ctx context.Context, d model.Driver) error

	ListRoutes(ctx context.Context) ([]model.Route, error)
	GetRoute(ctx context.Context, id string) (model.Route, error)
	UpsertRoute(ctx context.Context, r model.Route) error

	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	UpsertOrder(ctx context.Context, o model.Order) error

	ListAssignments(ctx context.Context) ([]model.Assignment, error)

	// ApplyAllocation replaces the whole assignment set in one atomic
	// operation: all existing assignments are deleted, every order's
	// driver link is cleared, then the given assignments and links are
	// written. A failure leaves the previous state untouched.
	ApplyAllocation(ctx context.Context, assignments []model.Assignment) error

	Close() error
}

// RunQuery filters simulation history lookups. Zero values mean "no filter".
type RunQuery struct {
	Start time.Time
	End   time.Time
	Limit int
}

// HistoryStore persists simulation run snapshots. Runs are append-only;
// they are never edited or deleted.
type HistoryStore interface {
	Append(ctx context.Context, run model.SimulationRun) error
	Query(ctx context.Context, q RunQuery) ([]model.SimulationRun, error)
	Close() error
}
