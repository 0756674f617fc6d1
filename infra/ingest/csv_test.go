package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/infra/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDrivers(t *testing.T) {
	fleet := store.NewMemoryStore()
	defer fleet.Close()
	path := writeFile(t, t.TempDir(), "drivers.csv",
		"name, shift_hours, past_week_hours\n"+
			"Amit,6,8|9|7|8|8|6|9\n"+
			"Priya,9.5,10|10|10|10|10|10|10\n")

	l := NewLoader(fleet)
	n, err := l.LoadDrivers(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, err := fleet.GetDriver(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Amit", d.Name)
	assert.Equal(t, 6.0, d.ShiftHoursToday)
	assert.Equal(t, 55.0, d.HoursWorkedPastWeek)

	d2, err := fleet.GetDriver(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Priya", d2.Name)
	assert.Equal(t, 70.0, d2.HoursWorkedPastWeek)
}

func TestLoadOrdersTimeFormats(t *testing.T) {
	fleet := store.NewMemoryStore()
	defer fleet.Close()
	path := writeFile(t, t.TempDir(), "orders.csv",
		"order_id,value_rs,route_id,delivery_time\n"+
			"O1,1200,R1,14:30\n"+
			"O2,800,R2,2026-03-01 09:15:00\n")

	l := NewLoader(fleet)
	l.now = func() time.Time { return time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC) }
	n, err := l.LoadOrders(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	o1, err := fleet.GetOrder(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), o1.DeliveryTime)
	assert.Equal(t, 1200.0, o1.Value)
	assert.Nil(t, o1.AssignedDriverID)

	o2, err := fleet.GetOrder(context.Background(), "O2")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC), o2.DeliveryTime)
}

func TestLoadRoutes(t *testing.T) {
	fleet := store.NewMemoryStore()
	defer fleet.Close()
	path := writeFile(t, t.TempDir(), "routes.csv",
		"route_id,distance_km,traffic_level,base_time_min\n"+
			"R1,12.5,High,35\n")

	l := NewLoader(fleet)
	n, err := l.LoadRoutes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := fleet.GetRoute(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, r.DistanceKm)
	assert.Equal(t, "High", string(r.TrafficLevel))
	assert.Equal(t, 35, r.BaseTimeMinutes)
}

func TestLoadDriversMissingColumn(t *testing.T) {
	fleet := store.NewMemoryStore()
	defer fleet.Close()
	path := writeFile(t, t.TempDir(), "drivers.csv", "name,shift_hours\nAmit,6\n")

	_, err := NewLoader(fleet).LoadDrivers(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past_week_hours")
}

func TestLoadAll(t *testing.T) {
	fleet := store.NewMemoryStore()
	defer fleet.Close()
	dir := t.TempDir()
	writeFile(t, dir, "drivers.csv", "name,shift_hours,past_week_hours\nAmit,6,8|8|8|8|8|8|8\n")
	writeFile(t, dir, "routes.csv", "route_id,distance_km,traffic_level,base_time_min\nR1,10,low,30\n")
	writeFile(t, dir, "orders.csv", "order_id,value_rs,route_id,delivery_time\nO1,500,R1,12:00\n")

	require.NoError(t, NewLoader(fleet).LoadAll(context.Background(), dir))

	drivers, err := fleet.ListDrivers(context.Background())
	require.NoError(t, err)
	orders, err := fleet.ListOrders(context.Background())
	require.NoError(t, err)
	routes, err := fleet.ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Len(t, drivers, 1)
	assert.Len(t, orders, 1)
	assert.Len(t, routes, 1)
}
