package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	corestore "github.com/kilianp07/fleetdispatch/core/store"
)

func backends(t *testing.T) map[string]corestore.FleetStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]corestore.FleetStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func seedFleet(t *testing.T, s corestore.FleetStore) {
	t.Helper()
	ctx := context.Background()
	drivers := []model.Driver{
		{ID: "1", Name: "Amit", ShiftHoursToday: 4, HoursWorkedPastWeek: 35},
		{ID: "2", Name: "Priya", ShiftHoursToday: 6, HoursWorkedPastWeek: 42},
	}
	for _, d := range drivers {
		if err := s.UpsertDriver(ctx, d); err != nil {
			t.Fatalf("upsert driver: %v", err)
		}
	}
	if err := s.UpsertRoute(ctx, model.Route{ID: "R1", DistanceKm: 10, TrafficLevel: "high", BaseTimeMinutes: 30}); err != nil {
		t.Fatalf("upsert route: %v", err)
	}
	if err := s.UpsertOrder(ctx, model.Order{
		ID: "O1", Value: 500, RouteID: "R1",
		DeliveryTime: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("upsert order: %v", err)
	}
}

func TestFleetStore_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedFleet(t, s)
			ctx := context.Background()

			d, err := s.GetDriver(ctx, "1")
			if err != nil {
				t.Fatalf("get driver: %v", err)
			}
			if d.Name != "Amit" || d.ShiftHoursToday != 4 || d.HoursWorkedPastWeek != 35 {
				t.Fatalf("driver mismatch: %+v", d)
			}

			r, err := s.GetRoute(ctx, "R1")
			if err != nil {
				t.Fatalf("get route: %v", err)
			}
			if r.TrafficLevel != "high" || r.BaseTimeMinutes != 30 {
				t.Fatalf("route mismatch: %+v", r)
			}

			o, err := s.GetOrder(ctx, "O1")
			if err != nil {
				t.Fatalf("get order: %v", err)
			}
			if !o.DeliveryTime.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
				t.Fatalf("delivery time mismatch: %v", o.DeliveryTime)
			}
			if o.Assigned() {
				t.Fatalf("new order must be unassigned")
			}
		})
	}
}

func TestFleetStore_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.GetDriver(ctx, "ghost"); !errors.Is(err, corestore.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := s.GetOrder(ctx, "ghost"); !errors.Is(err, corestore.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := s.GetRoute(ctx, "ghost"); !errors.Is(err, corestore.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFleetStore_UpsertOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedFleet(t, s)
			ctx := context.Background()
			if err := s.UpsertDriver(ctx, model.Driver{ID: "1", Name: "Amit K", ShiftHoursToday: 5, HoursWorkedPastWeek: 36}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			drivers, err := s.ListDrivers(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(drivers) != 2 {
				t.Fatalf("upsert must not duplicate, got %d drivers", len(drivers))
			}
			d, _ := s.GetDriver(ctx, "1")
			if d.Name != "Amit K" || d.ShiftHoursToday != 5 {
				t.Fatalf("update not applied: %+v", d)
			}
		})
	}
}

func TestFleetStore_StableListOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := []string{"30", "7", "19", "2"}
			for _, id := range ids {
				if err := s.UpsertDriver(ctx, model.Driver{ID: id, Name: id}); err != nil {
					t.Fatalf("upsert: %v", err)
				}
			}
			drivers, err := s.ListDrivers(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for i, id := range ids {
				if drivers[i].ID != id {
					t.Fatalf("insertion order not kept: got %v", drivers)
				}
			}
		})
	}
}

func TestFleetStore_ApplyAllocation(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedFleet(t, s)
			ctx := context.Background()
			if err := s.UpsertOrder(ctx, model.Order{
				ID: "O2", Value: 900, RouteID: "R1",
				DeliveryTime: time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC),
			}); err != nil {
				t.Fatalf("upsert order: %v", err)
			}

			at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
			first := []model.Assignment{
				{OrderID: "O1", DriverID: "1", EstimatedDeliveryTime: at.Add(time.Hour), AssignedAt: at},
				{OrderID: "O2", DriverID: "2", EstimatedDeliveryTime: at.Add(2 * time.Hour), AssignedAt: at},
			}
			if err := s.ApplyAllocation(ctx, first); err != nil {
				t.Fatalf("apply: %v", err)
			}
			o, _ := s.GetOrder(ctx, "O1")
			if !o.Assigned() || *o.AssignedDriverID != "1" {
				t.Fatalf("order link not written: %+v", o)
			}

			// the second run reassigns everything to driver 2
			second := []model.Assignment{
				{OrderID: "O1", DriverID: "2", EstimatedDeliveryTime: at.Add(time.Hour), AssignedAt: at},
			}
			if err := s.ApplyAllocation(ctx, second); err != nil {
				t.Fatalf("apply: %v", err)
			}
			assignments, err := s.ListAssignments(ctx)
			if err != nil {
				t.Fatalf("list assignments: %v", err)
			}
			if len(assignments) != 1 {
				t.Fatalf("old assignments not cleared, got %d", len(assignments))
			}
			if assignments[0].OrderID != "O1" || assignments[0].DriverID != "2" {
				t.Fatalf("assignment mismatch: %+v", assignments[0])
			}
			o1, _ := s.GetOrder(ctx, "O1")
			if *o1.AssignedDriverID != "2" {
				t.Fatalf("order link not replaced: %+v", o1)
			}
			o2, _ := s.GetOrder(ctx, "O2")
			if o2.Assigned() {
				t.Fatalf("stale order link not cleared: %+v", o2)
			}
		})
	}
}

func TestFleetStore_ApplyAllocationEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedFleet(t, s)
			ctx := context.Background()
			at := time.Now()
			if err := s.ApplyAllocation(ctx, []model.Assignment{
				{OrderID: "O1", DriverID: "1", EstimatedDeliveryTime: at, AssignedAt: at},
			}); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if err := s.ApplyAllocation(ctx, nil); err != nil {
				t.Fatalf("apply empty: %v", err)
			}
			assignments, _ := s.ListAssignments(ctx)
			if len(assignments) != 0 {
				t.Fatalf("expected empty plan, got %d", len(assignments))
			}
			o, _ := s.GetOrder(ctx, "O1")
			if o.Assigned() {
				t.Fatalf("order link must be cleared by empty plan")
			}
		})
	}
}
