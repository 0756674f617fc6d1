package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/store"
)

// PostgresStore persists the fleet in Postgres through the pgx stdlib
// driver. A seq column preserves insertion order for stable listings.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database at dsn and ensures schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (ping err: %w)", cerr, err)
		}
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS drivers (
        seq BIGSERIAL,
        id TEXT PRIMARY KEY,
        name TEXT,
        shift_hours_today DOUBLE PRECISION,
        hours_worked_past_week DOUBLE PRECISION
    );
    CREATE TABLE IF NOT EXISTS routes (
        seq BIGSERIAL,
        id TEXT PRIMARY KEY,
        distance_km DOUBLE PRECISION,
        traffic_level TEXT,
        base_time_minutes INTEGER
    );
    CREATE TABLE IF NOT EXISTS orders (
        seq BIGSERIAL,
        id TEXT PRIMARY KEY,
        value DOUBLE PRECISION,
        route_id TEXT,
        delivery_time TIMESTAMPTZ,
        assigned_driver_id TEXT
    );
    CREATE TABLE IF NOT EXISTS assignments (
        seq BIGSERIAL,
        order_id TEXT PRIMARY KEY,
        driver_id TEXT,
        estimated_delivery_time TIMESTAMPTZ,
        assigned_at TIMESTAMPTZ
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, shift_hours_today, hours_worked_past_week FROM drivers ORDER BY seq`)
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

func (s *PostgresStore) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	var d model.Driver
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, shift_hours_today, hours_worked_past_week FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.ShiftHoursToday, &d.HoursWorkedPastWeek)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, store.ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) UpsertDriver(ctx context.Context, d model.Driver) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drivers (id, name, shift_hours_today, hours_worked_past_week)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            shift_hours_today = excluded.shift_hours_today,
            hours_worked_past_week = excluded.hours_worked_past_week`,
		d.ID, d.Name, d.ShiftHoursToday, d.HoursWorkedPastWeek)
	return err
}

func (s *PostgresStore) ListRoutes(ctx context.Context) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, distance_km, traffic_level, base_time_minutes FROM routes ORDER BY seq`)
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

func (s *PostgresStore) GetRoute(ctx context.Context, id string) (model.Route, error) {
	var r model.Route
	err := s.db.QueryRowContext(ctx,
		`SELECT id, distance_km, traffic_level, base_time_minutes FROM routes WHERE id = $1`, id).
		Scan(&r.ID, &r.DistanceKm, &r.TrafficLevel, &r.BaseTimeMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, store.ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) UpsertRoute(ctx context.Context, r model.Route) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (id, distance_km, traffic_level, base_time_minutes)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            distance_km = excluded.distance_km,
            traffic_level = excluded.traffic_level,
            base_time_minutes = excluded.base_time_minutes`,
		r.ID, r.DistanceKm, string(r.TrafficLevel), r.BaseTimeMinutes)
	return err
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value, route_id, delivery_time, assigned_driver_id FROM orders ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Order
	for rows.Next() {
		var (
			o      model.Order
			driver sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Value, &o.RouteID, &o.DeliveryTime, &driver); err != nil {
			return nil, err
		}
		if driver.Valid {
			o.AssignedDriverID = &driver.String
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var (
		o      model.Order
		driver sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, value, route_id, delivery_time, assigned_driver_id FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Value, &o.RouteID, &o.DeliveryTime, &driver)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, store.ErrNotFound
	}
	if driver.Valid {
		o.AssignedDriverID = &driver.String
	}
	return o, err
}

func (s *PostgresStore) UpsertOrder(ctx context.Context, o model.Order) error {
	var driver any
	if o.AssignedDriverID != nil {
		driver = *o.AssignedDriverID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, value, route_id, delivery_time, assigned_driver_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            value = excluded.value,
            route_id = excluded.route_id,
            delivery_time = excluded.delivery_time,
            assigned_driver_id = excluded.assigned_driver_id`,
		o.ID, o.Value, o.RouteID, o.DeliveryTime, driver)
	return err
}

func (s *PostgresStore) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, driver_id, estimated_delivery_time, assigned_at FROM assignments ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.OrderID, &a.DriverID, &a.EstimatedDeliveryTime, &a.AssignedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ApplyAllocation rebuilds the assignment set in a single transaction so a
// mid-run failure leaves the previous plan intact.
func (s *PostgresStore) ApplyAllocation(ctx context.Context, assignments []model.Assignment) error {
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
            VALUES ($1, $2, $3, $4)`,
			a.OrderID, a.DriverID, a.EstimatedDeliveryTime, a.AssignedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET assigned_driver_id = $1 WHERE id = $2`, a.DriverID, a.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error { return s.db.Close() }
