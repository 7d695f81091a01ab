package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents ride status. It is a closed set; anything else is
// rejected at the boundary by ParseStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a raw string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusPickedUp, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown ride status %q", s)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ride represents a single customer-to-driver transportation request
// and its lifecycle record.
type Ride struct {
	ID          uuid.UUID  `json:"id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	Status      Status     `json:"status"`
	Pickup      string     `json:"pickup"`
	Destination string     `json:"destination"`
	Price       float64    `json:"price"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// HasDriver reports whether a driver has claimed this ride.
func (r *Ride) HasDriver() bool {
	return r.DriverID != nil
}

// IsDriver reports whether the given id is the ride's assigned driver.
func (r *Ride) IsDriver(id uuid.UUID) bool {
	return r.DriverID != nil && *r.DriverID == id
}

// IsCustomer reports whether the given id is the ride's owning customer.
func (r *Ride) IsCustomer(id uuid.UUID) bool {
	return r.CustomerID == id
}

// StatusPatch carries the fields a status transition is required to set.
// The repository applies it together with the status change in one
// atomic conditional write.
type StatusPatch struct {
	// DriverID is set only by the accept transition. When non-nil the
	// write predicate additionally requires that no driver is assigned
	// yet, so two concurrent accepts cannot both land.
	DriverID   *uuid.UUID
	AcceptedAt *time.Time
	// ClearDriver releases the assignment on cancellation, keeping the
	// rule that a driver is attached exactly while the ride is active.
	ClearDriver bool
	CancelledAt *time.Time
}

// FieldsPatch carries customer-editable route fields. Only applied
// while the ride is still pending.
type FieldsPatch struct {
	Pickup      *string
	Destination *string
	Price       *float64
	Notes       *string
}

// Repository is the persistence contract for rides. Conditional updates
// must be atomic in the store: the predicate (expected current status,
// and driver absence when a driver is being assigned) is evaluated and
// applied as one operation. The boolean result reports whether the
// predicate matched; false is a lost race, not an error.
type Repository interface {
	Create(ctx context.Context, r *Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, patch StatusPatch) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, expected Status, patch FieldsPatch) (bool, error)
	ListByStatus(ctx context.Context, status Status) ([]Ride, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Errors
var (
	ErrNotFound = errors.New("ride not found")
)
