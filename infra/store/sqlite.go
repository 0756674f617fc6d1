package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/store"
)

// SQLiteStore persists the fleet in a SQLite database. Insertion order is
// preserved through the rowid, so listings are stable across runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS drivers (
        id TEXT PRIMARY KEY,
        name TEXT,
        shift_hours_today REAL,
        hours_worked_past_week REAL
    );
    CREATE TABLE IF NOT EXISTS routes (
        id TEXT PRIMARY KEY,
        distance_km REAL,
        traffic_level TEXT,
        base_time_minutes INTEGER
    );
    CREATE TABLE IF NOT EXISTS orders (
        id TEXT PRIMARY KEY,
        value REAL,
        route_id TEXT,
        delivery_time INTEGER,
        assigned_driver_id TEXT
    );
    CREATE TABLE IF NOT EXISTS assignments (
        order_id TEXT PRIMARY KEY,
        driver_id TEXT,
        estimated_delivery_time INTEGER,
        assigned_at INTEGER
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, shift_hours_today, hours_worked_past_week FROM drivers ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Driver
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.ShiftHoursToday, &d.HoursWorkedPastWeek); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	var d model.Driver
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, shift_hours_today, hours_worked_past_week FROM drivers WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.ShiftHoursToday, &d.HoursWorkedPastWeek)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, store.ErrNotFound
	}
	return d, err
}

func (s *SQLiteStore) UpsertDriver(ctx context.Context, d model.Driver) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drivers (id, name, shift_hours_today, hours_worked_past_week)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            shift_hours_today = excluded.shift_hours_today,
            hours_worked_past_week = excluded.hours_worked_past_week`,
		d.ID, d.Name, d.ShiftHoursToday, d.HoursWorkedPastWeek)
	return err
}

func (s *SQLiteStore) ListRoutes(ctx context.Context) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, distance_km, traffic_level, base_time_minutes FROM routes ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Route
	for rows.Next() {
		var r model.Route
		if err := rows.Scan(&r.ID, &r.DistanceKm, &r.TrafficLevel, &r.BaseTimeMinutes); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) GetRoute(ctx context.Context, id string) (model.Route, error) {
	var r model.Route
	err := s.db.QueryRowContext(ctx,
		`SELECT id, distance_km, traffic_level, base_time_minutes FROM routes WHERE id = ?`, id).
		Scan(&r.ID, &r.DistanceKm, &r.TrafficLevel, &r.BaseTimeMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, store.ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) UpsertRoute(ctx context.Context, r model.Route) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (id, distance_km, traffic_level, base_time_minutes)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            distance_km = excluded.distance_km,
            traffic_level = excluded.traffic_level,
            base_time_minutes = excluded.base_time_minutes`,
		r.ID, r.DistanceKm, string(r.TrafficLevel), r.BaseTimeMinutes)
	return err
}

func (s *SQLiteStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value, route_id, delivery_time, assigned_driver_id FROM orders ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (model.Order, error) {
	var (
		o        model.Order
		delivery int64
		driver   sql.NullString
	)
	if err := row.Scan(&o.ID, &o.Value, &o.RouteID, &delivery, &driver); err != nil {
		return model.Order{}, err
	}
	o.DeliveryTime = time.Unix(delivery, 0).UTC()
	if driver.Valid {
		o.AssignedDriverID = &driver.String
	}
	return o, nil
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, value, route_id, delivery_time, assigned_driver_id FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, store.ErrNotFound
	}
	return o, err
}

func (s *SQLiteStore) UpsertOrder(ctx context.Context, o model.Order) error {
	var driver any
	if o.AssignedDriverID != nil {
		driver = *o.AssignedDriverID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, value, route_id, delivery_time, assigned_driver_id)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            value = excluded.value,
            route_id = excluded.route_id,
            delivery_time = excluded.delivery_time,
            assigned_driver_id = excluded.assigned_driver_id`,
		o.ID, o.Value, o.RouteID, o.DeliveryTime.Unix(), driver)
	return err
}

func (s *SQLiteStore) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, driver_id, estimated_delivery_time, assigned_at FROM assignments ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Assignment
	for rows.Next() {
		var (
			a       model.Assignment
			eta, at int64
		)
		if err := rows.Scan(&a.OrderID, &a.DriverID, &eta, &at); err != nil {
			return nil, err
		}
		a.EstimatedDeliveryTime = time.Unix(eta, 0).UTC()
		a.AssignedAt = time.Unix(at, 0).UTC()
		res = append(res, a)
	}
	return res, rows.Err()
}

// ApplyAllocation rebuilds the assignment set in a single transaction:
// delete everything, clear all order links, then write the new plan. A
// failure rolls back to the previous state.
func (s *SQLiteStore) ApplyAllocation(ctx context.Context, assignments []model.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET assigned_driver_id = NULL`); err != nil {
		return err
	}
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (order_id, driver_id, estimated_delivery_time, assigned_at)
            VALUES (?, ?, ?, ?)`,
			a.OrderID, a.DriverID, a.EstimatedDeliveryTime.Unix(), a.AssignedAt.Unix()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET assigned_driver_id = ? WHERE id = ?`, a.DriverID, a.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
