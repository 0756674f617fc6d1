// Package store provides FleetStore implementations: an in-memory store
// for tests and local runs, SQLite for single-node deployments and
// Postgres for shared ones.
package store

import (
	"context"
	"sync"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/store"
)

// MemoryStore keeps all records in process memory. Listing methods return
// records in insertion order, which gives the engine its stable driver
// ordering.
type MemoryStore struct {
	mu          sync.RWMutex
	drivers     []model.Driver
	routes      []model.Route
	orders      []model.Order
	assignments []model.Assignment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) ListDrivers(context.Context) ([]model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Driver, len(s.drivers))
	copy(out, s.drivers)
	return out, nil
}

func (s *MemoryStore) GetDriver(_ context.Context, id string) (model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.ID == id {
			return d, nil
		}
	}
	return model.Driver{}, store.ErrNotFound
}

func (s *MemoryStore) UpsertDriver(_ context.Context, d model.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.drivers {
		if s.drivers[i].ID == d.ID {
			s.drivers[i] = d
			return nil
		}
	}
	s.drivers = append(s.drivers, d)
	return nil
}

func (s *MemoryStore) ListRoutes(context.Context) ([]model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Route, len(s.routes))
	copy(out, s.routes)
	return out, nil
}

func (s *MemoryStore) GetRoute(_ context.Context, id string) (model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Route{}, store.ErrNotFound
}

func (s *MemoryStore) UpsertRoute(_ context.Context, r model.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == r.ID {
			s.routes[i] = r
			return nil
		}
	}
	s.routes = append(s.routes, r)
	return nil
}

func (s *MemoryStore) ListOrders(context.Context) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, store.ErrNotFound
}

func (s *MemoryStore) UpsertOrder(_ context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == o.ID {
			s.orders[i] = o
			return nil
		}
	}
	s.orders = append(s.orders, o)
	return nil
}

func (s *MemoryStore) ListAssignments(context.Context) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out, nil
}

// ApplyAllocation replaces the assignment set and rewrites every order's
// driver link under one lock, mirroring the transactional stores.
func (s *MemoryStore) ApplyAllocation(_ context.Context, assignments []model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byOrder := make(map[string]string, len(assignments))
	for _, a := range assignments {
		byOrder[a.OrderID] = a.DriverID
	}
	for i := range s.orders {
		if driverID, ok := byOrder[s.orders[i].ID]; ok {
			id := driverID
			s.orders[i].AssignedDriverID = &id
		} else {
			s.orders[i].AssignedDriverID = nil
		}
	}
	s.assignments = make([]model.Assignment, len(assignments))
	copy(s.assignments, assignments)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
