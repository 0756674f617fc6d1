// Package ingest loads fleet reference data from CSV files into a
// FleetStore. Files follow the operations team's export layout:
//
//	drivers.csv  name,shift_hours,past_week_hours
//	orders.csv   order_id,value_rs,route_id,delivery_time
//	routes.csv   route_id,distance_km,traffic_level,base_time_min
//
// Driver IDs are not part of the export; they are generated from the row
// position, starting at 1. The past_week_hours column holds seven
// pipe-separated daily values which are summed on load.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/store"
)

const (
	timeOnlyLayout = "15:04"
	fullLayout     = "2006-01-02 15:04:05"
)

// Loader reads CSV exports and upserts them into the fleet store.
type Loader struct {
	fleet store.FleetStore
	now   func() time.Time
}

// NewLoader creates a Loader writing into the given store.
func NewLoader(fleet store.FleetStore) *Loader {
	return &Loader{fleet: fleet, now: time.Now}
}

// LoadDrivers reads drivers.csv and upserts each row. IDs are assigned
// from the row order, 1..N.
func (l *Loader) LoadDrivers(ctx context.Context, path string) (int, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return 0, err
	}
	name, errCol := column(header, "name")
	if errCol != nil {
		return 0, errCol
	}
	shift, errCol := column(header, "shift_hours")
	if errCol != nil {
		return 0, errCol
	}
	week, errCol := column(header, "past_week_hours")
	if errCol != nil {
		return 0, errCol
	}

	count := 0
	for i, row := range rows {
		shiftHours, err := strconv.ParseFloat(strings.TrimSpace(row[shift]), 64)
		if err != nil {
			return count, fmt.Errorf("%s row %d: shift_hours: %w", path, i+2, err)
		}
		weekTotal, err := sumPipeHours(row[week])
		if err != nil {
			return count, fmt.Errorf("%s row %d: past_week_hours: %w", path, i+2, err)
		}
		d := model.Driver{
			ID:                  strconv.Itoa(i + 1),
			Name:                strings.TrimSpace(row[name]),
			ShiftHoursToday:     shiftHours,
			HoursWorkedPastWeek: weekTotal,
		}
		if err := d.Validate(); err != nil {
			return count, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if err := l.fleet.UpsertDriver(ctx, d); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// LoadOrders reads orders.csv and upserts each row. The delivery_time
// column accepts either HH:MM, resolved against today's date, or a full
// "2006-01-02 15:04:05" timestamp.
func (l *Loader) LoadOrders(ctx context.Context, path string) (int, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return 0, err
	}
	id, errCol := column(header, "order_id")
	if errCol != nil {
		return 0, errCol
	}
	value, errCol := column(header, "value_rs")
	if errCol != nil {
		return 0, errCol
	}
	route, errCol := column(header, "route_id")
	if errCol != nil {
		return 0, errCol
	}
	delivery, errCol := column(header, "delivery_time")
	if errCol != nil {
		return 0, errCol
	}

	count := 0
	for i, row := range rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[value]), 64)
		if err != nil {
			return count, fmt.Errorf("%s row %d: value_rs: %w", path, i+2, err)
		}
		due, err := l.parseDeliveryTime(strings.TrimSpace(row[delivery]))
		if err != nil {
			return count, fmt.Errorf("%s row %d: delivery_time: %w", path, i+2, err)
		}
		o := model.Order{
			ID:           strings.TrimSpace(row[id]),
			Value:        v,
			RouteID:      strings.TrimSpace(row[route]),
			DeliveryTime: due,
		}
		if err := l.fleet.UpsertOrder(ctx, o); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// LoadRoutes reads routes.csv and upserts each row.
func (l *Loader) LoadRoutes(ctx context.Context, path string) (int, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return 0, err
	}
	id, errCol := column(header, "route_id")
	if errCol != nil {
		return 0, errCol
	}
	dist, errCol := column(header, "distance_km")
	if errCol != nil {
		return 0, errCol
	}
	traffic, errCol := column(header, "traffic_level")
	if errCol != nil {
		return 0, errCol
	}
	base, errCol := column(header, "base_time_min")
	if errCol != nil {
		return 0, errCol
	}

	count := 0
	for i, row := range rows {
		km, err := strconv.ParseFloat(strings.TrimSpace(row[dist]), 64)
		if err != nil {
			return count, fmt.Errorf("%s row %d: distance_km: %w", path, i+2, err)
		}
		mins, err := strconv.Atoi(strings.TrimSpace(row[base]))
		if err != nil {
			return count, fmt.Errorf("%s row %d: base_time_min: %w", path, i+2, err)
		}
		r := model.Route{
			ID:              strings.TrimSpace(row[id]),
			DistanceKm:      km,
			TrafficLevel:    model.TrafficLevel(strings.TrimSpace(row[traffic])),
			BaseTimeMinutes: mins,
		}
		if err := r.Validate(); err != nil {
			return count, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if err := l.fleet.UpsertRoute(ctx, r); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// LoadAll loads drivers.csv, orders.csv and routes.csv from dir. Routes
// are loaded before orders so order route references resolve on first use.
func (l *Loader) LoadAll(ctx context.Context, dir string) error {
	if _, err := l.LoadDrivers(ctx, dir+"/drivers.csv"); err != nil {
		return err
	}
	if _, err := l.LoadRoutes(ctx, dir+"/routes.csv"); err != nil {
		return err
	}
	if _, err := l.LoadOrders(ctx, dir+"/orders.csv"); err != nil {
		return err
	}
	return nil
}

func (l *Loader) parseDeliveryTime(s string) (time.Time, error) {
	if len(s) <= 5 {
		t, err := time.Parse(timeOnlyLayout, s)
		if err != nil {
			return time.Time{}, err
		}
		now := l.now()
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
	}
	return time.ParseInLocation(fullLayout, s, l.now().Location())
}

func sumPipeHours(s string) (float64, error) {
	total := 0.0
	for _, part := range strings.Split(s, "|") {
		h, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, err
		}
		total += h
	}
	return total, nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	head, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, nil, err
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.TrimSpace(h)] = i
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, header, nil
}

func column(header map[string]int, name string) (int, error) {
	i, ok := header[name]
	if !ok {
		return 0, fmt.Errorf("missing column %q", name)
	}
	return i, nil
}
