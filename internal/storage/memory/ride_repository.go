// Package memory provides mutex-guarded in-memory repositories. They
// implement the same conditional-write contract as the SQL versions and
// back the test suite and local development mode.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/domain/ride"
)

// RideRepository is an in-memory ride.Repository. The mutex makes each
// conditional update a single atomic predicate-check-and-apply, mirroring
// what the SQL implementation gets from a one-statement UPDATE.
type RideRepository struct {
	mu    sync.Mutex
	rides map[uuid.UUID]ride.Ride
}

func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[uuid.UUID]ride.Ride)}
}

func (rr *RideRepository) Create(_ context.Context, r *ride.Ride) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.rides[r.ID] = cloneRide(*r)
	return nil
}

func (rr *RideRepository) GetByID(_ context.Context, id uuid.UUID) (*ride.Ride, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	r, ok := rr.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	out := cloneRide(r)
	return &out, nil
}

func (rr *RideRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to ride.Status, patch ride.StatusPatch) (bool, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	// unknown id reads like any other unmatched predicate, same as a
	// zero-row UPDATE
	r, ok := rr.rides[id]
	if !ok || r.Status != from {
		return false, nil
	}
	if patch.DriverID != nil && r.DriverID != nil {
		return false, nil
	}

	r.Status = to
	if patch.DriverID != nil {
		driverID := *patch.DriverID
		r.DriverID = &driverID
	}
	if patch.ClearDriver {
		r.DriverID = nil
	}
	if patch.AcceptedAt != nil {
		t := *patch.AcceptedAt
		r.AcceptedAt = &t
	}
	if patch.CancelledAt != nil {
		t := *patch.CancelledAt
		r.CancelledAt = &t
	}
	rr.rides[id] = r
	return true, nil
}

func (rr *RideRepository) UpdateFields(_ context.Context, id uuid.UUID, expected ride.Status, patch ride.FieldsPatch) (bool, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rides[id]
	if !ok || r.Status != expected {
		return false, nil
	}

	if patch.Pickup != nil {
		r.Pickup = *patch.Pickup
	}
	if patch.Destination != nil {
		r.Destination = *patch.Destination
	}
	if patch.Price != nil {
		r.Price = *patch.Price
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	rr.rides[id] = r
	return true, nil
}

func (rr *RideRepository) ListByStatus(_ context.Context, status ride.Status) ([]ride.Ride, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var out []ride.Ride
	for _, r := range rr.rides {
		if r.Status == status {
			out = append(out, cloneRide(r))
		}
	}
	return out, nil
}

func (rr *RideRepository) CountByStatus(_ context.Context) (map[ride.Status]int, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	out := make(map[ride.Status]int)
	for _, r := range rr.rides {
		out[r.Status]++
	}
	return out, nil
}

// cloneRide deep-copies pointer fields so callers cannot mutate stored
// state behind the lock.
func cloneRide(r ride.Ride) ride.Ride {
	if r.DriverID != nil {
		d := *r.DriverID
		r.DriverID = &d
	}
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		r.AcceptedAt = &t
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		r.CancelledAt = &t
	}
	return r
}
