package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	apperrors "github.com/cityride/dispatch/pkg/errors"
	"github.com/cityride/dispatch/pkg/logger"
)

const pendingRidesKey = "rides:pending"

// Service orchestrates identity, authorization, the state machine and
// the repository for every ride-mutating request. It holds no mutable
// ride state of its own; the repository's conditional writes are the
// sole serialization point.
type Service struct {
	rides    ride.Repository
	users    user.Repository
	cache    *redis.Client
	cacheTTL time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// New wires the service with its collaborators. cache may be nil, in
// which case the pending-rides listing always hits the repository.
func New(rides ride.Repository, users user.Repository, cache *redis.Client, cacheTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		rides:    rides,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateRideInput is the payload for a new ride request.
type CreateRideInput struct {
	Pickup      string
	Destination string
	Price       float64
	Notes       string
}

// UpdateRideInput carries optional field updates; nil means unchanged.
type UpdateRideInput struct {
	Pickup      *string
	Destination *string
	Price       *float64
	Notes       *string
}

// RideDetail is a ride plus its driver summary when one is assigned.
type RideDetail struct {
	Ride   ride.Ride      `json:"ride"`
	Driver *DriverSummary `json:"driver,omitempty"`
}

// DriverSummary is the slice of a driver account exposed to the
// ride's customer.
type DriverSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	VehicleMake  string    `json:"vehicle_make,omitempty"`
	VehiclePlate string    `json:"vehicle_plate,omitempty"`
}

// Analytics is the admin population/lifecycle overview.
type Analytics struct {
	AccountsByRole map[user.Role]int   `json:"accounts_by_role"`
	RidesByStatus  map[ride.Status]int `json:"rides_by_status"`
}

// CreateRide registers a new pending ride for the acting customer.
func (s *Service) CreateRide(ctx context.Context, actor identity.Actor, in CreateRideInput) (*ride.Ride, error) {
	if err := Authorize(actor, OpCreate, nil); err != nil {
		return nil, err
	}
	if in.Pickup == "" || in.Destination == "" {
		return nil, apperrors.Validation("pickup and destination are required", nil)
	}
	if in.Price <= 0 {
		return nil, apperrors.Validation("price must be positive", nil)
	}

	r := &ride.Ride{
		ID:          uuid.New(),
		CustomerID:  actor.ID,
		Status:      ride.StatusPending,
		Pickup:      in.Pickup,
		Destination: in.Destination,
		Price:       in.Price,
		Notes:       in.Notes,
		CreatedAt:   s.now(),
	}
	if err := s.rides.Create(ctx, r); err != nil {
		s.log.Error("failed to create ride", logger.Err(err))
		return nil, apperrors.Internal("failed to create ride", err)
	}
	s.invalidatePending(ctx)

	s.log.Info("ride created",
		logger.String("ride_id", r.ID.String()),
		logger.String("customer_id", actor.ID.String()),
	)
	return r, nil
}

// AcceptRide claims a pending ride for the acting driver. The write
// predicate re-checks status and driver absence atomically in the
// store; losing that race is a Conflict, not a fault.
func (s *Service) AcceptRide(ctx context.Context, actor identity.Actor, rideID uuid.UUID) (*ride.Ride, error) {
	r, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, OpAccept, r); err != nil {
		// For a driver, a ride someone else already claimed is the same
		// outcome whether the loss is observed here or at write time.
		if actor.Role == user.RoleDriver && r.HasDriver() {
			return nil, apperrors.Conflict("ride was already claimed by another driver")
		}
		return nil, err
	}
	next, ok := ride.Next(r.Status, ride.ActionAccept)
	if !ok {
		return nil, apperrors.InvalidTransition("ride cannot be accepted from status " + string(r.Status))
	}

	acceptedAt := s.now()
	driverID := actor.ID
	patch := ride.StatusPatch{DriverID: &driverID, AcceptedAt: &acceptedAt}

	applied, err := s.rides.UpdateStatus(ctx, r.ID, r.Status, next, patch)
	if err != nil {
		s.log.Error("accept write failed", logger.String("ride_id", r.ID.String()), logger.Err(err))
		return nil, apperrors.Internal("failed to accept ride", err)
	}
	if !applied {
		s.log.Warn("accept lost race",
			logger.String("ride_id", r.ID.String()),
			logger.String("driver_id", actor.ID.String()),
		)
		return nil, apperrors.Conflict("ride was claimed or cancelled by someone else")
	}
	s.invalidatePending(ctx)

	r.Status = next
	r.DriverID = &driverID
	r.AcceptedAt = &acceptedAt

	s.log.Info("ride accepted",
		logger.String("ride_id", r.ID.String()),
		logger.String("driver_id", actor.ID.String()),
	)
	return r, nil
}

// UpdateRideFields edits route fields while the ride is still pending.
func (s *Service) UpdateRideFields(ctx context.Context, actor identity.Actor, rideID uuid.UUID, in UpdateRideInput) (*ride.Ride, error) {
	r, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, OpUpdateFields, r); err != nil {
		return nil, err
	}
	if r.Status != ride.StatusPending {
		return nil, apperrors.InvalidTransition("ride fields are frozen once status leaves pending")
	}
	if in.Price != nil && *in.Price <= 0 {
		return nil, apperrors.Validation("price must be positive", nil)
	}

	patch := ride.FieldsPatch{
		Pickup:      in.Pickup,
		Destination: in.Destination,
		Price:       in.Price,
		Notes:       in.Notes,
	}
	applied, err := s.rides.UpdateFields(ctx, r.ID, ride.StatusPending, patch)
	if err != nil {
		s.log.Error("fields write failed", logger.String("ride_id", r.ID.String()), logger.Err(err))
		return nil, apperrors.Internal("failed to update ride", err)
	}
	if !applied {
		return nil, apperrors.Conflict("ride left pending before the update landed")
	}
	s.invalidatePending(ctx)

	if in.Pickup != nil {
		r.Pickup = *in.Pickup
	}
	if in.Destination != nil {
		r.Destination = *in.Destination
	}
	if in.Price != nil {
		r.Price = *in.Price
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	return r, nil
}

// AdvanceStatus moves an accepted or picked-up ride forward on behalf
// of its driver. Target must be picked_up, completed or cancelled.
func (s *Service) AdvanceStatus(ctx context.Context, actor identity.Actor, rideID uuid.UUID, target ride.Status) (*ride.Ride, error) {
	action, ok := ride.ActionFor(target)
	if !ok || target == ride.StatusAccepted {
		return nil, apperrors.Validation("target status must be picked_up, completed or cancelled", nil)
	}

	r, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, OpAdvance, r); err != nil {
		return nil, err
	}
	return s.transition(ctx, r, action)
}

// CancelRide cancels a pending or accepted ride on behalf of its customer.
func (s *Service) CancelRide(ctx context.Context, actor identity.Actor, rideID uuid.UUID) (*ride.Ride, error) {
	r, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, OpCancel, r); err != nil {
		return nil, err
	}
	return s.transition(ctx, r, ride.ActionCancel)
}

// transition applies a state-machine edge through one conditional
// write against the status observed on r.
func (s *Service) transition(ctx context.Context, r *ride.Ride, action ride.Action) (*ride.Ride, error) {
	next, ok := ride.Next(r.Status, action)
	if !ok {
		return nil, apperrors.InvalidTransition(
			"cannot " + string(action) + " a ride in status " + string(r.Status))
	}

	var patch ride.StatusPatch
	if next == ride.StatusCancelled {
		cancelledAt := s.now()
		patch.CancelledAt = &cancelledAt
		patch.ClearDriver = true
	}

	applied, err := s.rides.UpdateStatus(ctx, r.ID, r.Status, next, patch)
	if err != nil {
		s.log.Error("status write failed",
			logger.String("ride_id", r.ID.String()),
			logger.String("action", string(action)),
			logger.Err(err),
		)
		return nil, apperrors.Internal("failed to update ride status", err)
	}
	if !applied {
		s.log.Warn("transition lost race",
			logger.String("ride_id", r.ID.String()),
			logger.String("action", string(action)),
		)
		return nil, apperrors.Conflict("ride status changed before the update landed")
	}
	if r.Status == ride.StatusPending {
		s.invalidatePending(ctx)
	}

	r.Status = next
	if patch.ClearDriver {
		r.DriverID = nil
	}
	if patch.CancelledAt != nil {
		r.CancelledAt = patch.CancelledAt
	}

	s.log.Info("ride transitioned",
		logger.String("ride_id", r.ID.String()),
		logger.String("action", string(action)),
		logger.String("status", string(next)),
	)
	return r, nil
}

// GetRideStatus returns the ride and, when a driver is assigned, the
// driver and vehicle summary.
func (s *Service) GetRideStatus(ctx context.Context, actor identity.Actor, rideID uuid.UUID) (*RideDetail, error) {
	r, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, OpView, r); err != nil {
		return nil, err
	}

	detail := &RideDetail{Ride: *r}
	if r.DriverID != nil {
		driver, err := s.users.GetByID(ctx, *r.DriverID)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			s.log.Error("driver lookup failed", logger.String("driver_id", r.DriverID.String()), logger.Err(err))
			return nil, apperrors.Internal("failed to load driver", err)
		}
		if driver != nil {
			detail.Driver = &DriverSummary{
				ID:           driver.ID,
				Name:         driver.Name,
				VehicleMake:  driver.VehicleMake,
				VehiclePlate: driver.VehiclePlate,
			}
		}
	}
	return detail, nil
}

// ListAvailableRides returns all pending rides for a browsing driver.
// The listing is cached; every write that can change pending
// membership drops the cache key.
func (s *Service) ListAvailableRides(ctx context.Context, actor identity.Actor) ([]ride.Ride, error) {
	if err := Authorize(actor, OpListAvailable, nil); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, pendingRidesKey).Result(); err == nil {
			var rides []ride.Ride
			if json.Unmarshal([]byte(raw), &rides) == nil {
				return rides, nil
			}
		}
	}

	rides, err := s.rides.ListByStatus(ctx, ride.StatusPending)
	if err != nil {
		s.log.Error("pending listing failed", logger.Err(err))
		return nil, apperrors.Internal("failed to list rides", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(rides); err == nil {
			s.cache.Set(ctx, pendingRidesKey, raw, s.cacheTTL)
		}
	}
	return rides, nil
}

// SetAccountBlocked flips the moderation flag on an account. Admin only.
func (s *Service) SetAccountBlocked(ctx context.Context, actor identity.Actor, accountID uuid.UUID, blocked bool) error {
	if err := Authorize(actor, OpModerate, nil); err != nil {
		return err
	}
	if err := s.users.SetBlocked(ctx, accountID, blocked); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperrors.NotFound("account not found")
		}
		s.log.Error("block flag write failed", logger.String("account_id", accountID.String()), logger.Err(err))
		return apperrors.Internal("failed to update account", err)
	}
	s.log.Info("account moderation flag set",
		logger.String("account_id", accountID.String()),
		logger.Bool("blocked", blocked),
		logger.String("admin_id", actor.ID.String()),
	)
	return nil
}

// GetAnalytics aggregates account and ride counts. Admin only.
func (s *Service) GetAnalytics(ctx context.Context, actor identity.Actor) (*Analytics, error) {
	if err := Authorize(actor, OpModerate, nil); err != nil {
		return nil, err
	}
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to count accounts", err)
	}
	byStatus, err := s.rides.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to count rides", err)
	}
	return &Analytics{AccountsByRole: byRole, RidesByStatus: byStatus}, nil
}

func (s *Service) getRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	r, err := s.rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ride.ErrNotFound) {
			return nil, apperrors.NotFound("ride not found")
		}
		s.log.Error("ride lookup failed", logger.String("ride_id", id.String()), logger.Err(err))
		return nil, apperrors.Internal("failed to load ride", err)
	}
	return r, nil
}

func (s *Service) invalidatePending(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, pendingRidesKey).Err(); err != nil {
		s.log.Warn("failed to drop pending listing cache", logger.Err(err))
	}
}
