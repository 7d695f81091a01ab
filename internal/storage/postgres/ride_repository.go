// Package postgres implements the domain repositories on PostgreSQL.
// Status transitions are single UPDATE statements whose WHERE clause
// carries the expected-state predicate, so the store evaluates and
// applies the compare-and-swap atomically.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/domain/ride"
)

type RideRepository struct {
	db *sql.DB
}

func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

func (rr *RideRepository) Create(ctx context.Context, r *ride.Ride) error {
	_, err := rr.db.ExecContext(ctx, `
		INSERT INTO rides (
			id, customer_id, driver_id, status,
			pickup, destination, price, notes,
			created_at, accepted_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID, r.CustomerID, driverIDValue(r.DriverID), string(r.Status),
		r.Pickup, r.Destination, r.Price, r.Notes,
		r.CreatedAt, r.AcceptedAt, r.CancelledAt)
	return err
}

func (rr *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	row := rr.db.QueryRowContext(ctx, `
		SELECT id, customer_id, driver_id, status,
		       pickup, destination, price, notes,
		       created_at, accepted_at, cancelled_at
		FROM rides
		WHERE id = $1
	`, id)

	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	return r, err
}

// UpdateStatus applies a transition only if the stored status still
// equals from. When the patch assigns a driver the predicate also
// requires driver_id to be unset; two concurrent accepts therefore
// resolve to exactly one applied row.
func (rr *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ride.Status, patch ride.StatusPatch) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1,
		    driver_id = CASE
		        WHEN $2::uuid IS NOT NULL THEN $2::uuid
		        WHEN $3 THEN NULL
		        ELSE driver_id
		    END,
		    accepted_at = COALESCE($4::timestamptz, accepted_at),
		    cancelled_at = COALESCE($5::timestamptz, cancelled_at)
		WHERE id = $6 AND status = $7`
	if patch.DriverID != nil {
		query += ` AND driver_id IS NULL`
	}

	res, err := rr.db.ExecContext(ctx, query,
		string(to), driverIDValue(patch.DriverID), patch.ClearDriver,
		patch.AcceptedAt, patch.CancelledAt,
		id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rr *RideRepository) UpdateFields(ctx context.Context, id uuid.UUID, expected ride.Status, patch ride.FieldsPatch) (bool, error) {
	res, err := rr.db.ExecContext(ctx, `
		UPDATE rides
		SET pickup      = COALESCE($1::text, pickup),
		    destination = COALESCE($2::text, destination),
		    price       = COALESCE($3::float8, price),
		    notes       = COALESCE($4::text, notes)
		WHERE id = $5 AND status = $6
	`, patch.Pickup, patch.Destination, patch.Price, patch.Notes,
		id, string(expected))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rr *RideRepository) ListByStatus(ctx context.Context, status ride.Status) ([]ride.Ride, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT id, customer_id, driver_id, status,
		       pickup, destination, price, notes,
		       created_at, accepted_at, cancelled_at
		FROM rides
		WHERE status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (rr *RideRepository) CountByStatus(ctx context.Context) (map[ride.Status]int, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM rides GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ride.Status]int)
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		status, err := ride.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*ride.Ride, error) {
	var r ride.Ride
	var driverID sql.NullString
	var rawStatus string
	var acceptedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.CustomerID, &driverID, &rawStatus,
		&r.Pickup, &r.Destination, &r.Price, &r.Notes,
		&r.CreatedAt, &acceptedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status, err = ride.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if driverID.Valid {
		id, err := uuid.Parse(driverID.String)
		if err != nil {
			return nil, err
		}
		r.DriverID = &id
	}
	if acceptedAt.Valid {
		r.AcceptedAt = &acceptedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	return &r, nil
}

func driverIDValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
