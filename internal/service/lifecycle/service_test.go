package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	"github.com/cityride/dispatch/internal/storage/memory"
	apperrors "github.com/cityride/dispatch/pkg/errors"
	"github.com/cityride/dispatch/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.RideRepository, *memory.UserRepository) {
	t.Helper()
	rides := memory.NewRideRepository()
	users := memory.NewUserRepository()
	svc := New(rides, users, nil, 0, logger.NewNop())
	return svc, rides, users
}

func customer() identity.Actor {
	return identity.Actor{ID: uuid.New(), Role: user.RoleCustomer}
}

func driver() identity.Actor {
	return identity.Actor{ID: uuid.New(), Role: user.RoleDriver}
}

func admin() identity.Actor {
	return identity.Actor{ID: uuid.New(), Role: user.RoleAdmin}
}

func createPending(t *testing.T, svc *Service, c identity.Actor) *ride.Ride {
	t.Helper()
	r, err := svc.CreateRide(context.Background(), c, CreateRideInput{
		Pickup:      "A",
		Destination: "B",
		Price:       10,
	})
	require.NoError(t, err)
	return r
}

// assertDriverInvariant checks that a driver is attached exactly while
// the ride is accepted, picked up or completed.
func assertDriverInvariant(t *testing.T, r *ride.Ride) {
	t.Helper()
	active := r.Status == ride.StatusAccepted || r.Status == ride.StatusPickedUp || r.Status == ride.StatusCompleted
	if active {
		assert.NotNil(t, r.DriverID, "active ride %s must have a driver", r.Status)
	} else {
		assert.Nil(t, r.DriverID, "ride in %s must not have a driver", r.Status)
	}
}

// TestCreateRide_RoundTrip tests create then view by the same customer
func TestCreateRide_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := customer()

	created := createPending(t, svc, c)
	assert.Equal(t, ride.StatusPending, created.Status)
	assert.Nil(t, created.DriverID)

	detail, err := svc.GetRideStatus(context.Background(), c, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPending, detail.Ride.Status)
	assert.Nil(t, detail.Ride.DriverID)
	assert.Equal(t, "A", detail.Ride.Pickup)
	assert.Equal(t, "B", detail.Ride.Destination)
	assert.Equal(t, 10.0, detail.Ride.Price)
	assert.Nil(t, detail.Driver)
}

// TestCreateRide_Validation tests required fields
func TestCreateRide_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateRideInput
	}{
		{"missing pickup", CreateRideInput{Destination: "B", Price: 10}},
		{"missing destination", CreateRideInput{Pickup: "A", Price: 10}},
		{"zero price", CreateRideInput{Pickup: "A", Destination: "B"}},
		{"negative price", CreateRideInput{Pickup: "A", Destination: "B", Price: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRide(ctx, customer(), tt.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

// TestCreateRide_DriverForbidden tests that only customers create rides
func TestCreateRide_DriverForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateRide(context.Background(), driver(), CreateRideInput{
		Pickup: "A", Destination: "B", Price: 10,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestAcceptRide_HappyPath tests a driver claiming a pending ride
func TestAcceptRide_HappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := driver()

	r := createPending(t, svc, customer())
	accepted, err := svc.AcceptRide(ctx, d, r.ID)
	require.NoError(t, err)

	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DriverID)
	assert.Equal(t, d.ID, *accepted.DriverID)
	assert.NotNil(t, accepted.AcceptedAt)
	assertDriverInvariant(t, accepted)
}

// TestAcceptRide_UnknownRide tests NotFound
func TestAcceptRide_UnknownRide(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AcceptRide(context.Background(), driver(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// TestAcceptRide_AlreadyAccepted tests the second driver is rejected
func TestAcceptRide_AlreadyAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	r := createPending(t, svc, customer())
	_, err := svc.AcceptRide(ctx, driver(), r.ID)
	require.NoError(t, err)

	_, err = svc.AcceptRide(ctx, driver(), r.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "accepted ride already has a driver")
}

// TestConcurrentAccept_OneWinner tests the central concurrency invariant:
// two distinct drivers racing for the same pending ride, exactly one wins.
func TestConcurrentAccept_OneWinner(t *testing.T) {
	svc, rides, _ := newTestService(t)
	ctx := context.Background()

	r := createPending(t, svc, customer())
	d1, d2 := driver(), driver()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	for _, d := range []identity.Actor{d1, d2} {
		wg.Add(1)
		go func(actor identity.Actor) {
			defer wg.Done()
			_, err := svc.AcceptRide(ctx, actor, r.ID)
			errs <- err
		}(d)
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperrors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one accept must win")
	assert.Equal(t, 1, conflicts, "the loser must observe a conflict whether it reads before or after the winner's write")

	stored, err := rides.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, stored.Status)
	require.NotNil(t, stored.DriverID)
	assert.True(t, *stored.DriverID == d1.ID || *stored.DriverID == d2.ID)
	assertDriverInvariant(t, stored)
}

// TestLifecycle_FullScenario walks a full ride end to end:
// create, D1 accepts, D2 conflicts, shortcut to completed rejected,
// then pickup and complete.
func TestLifecycle_FullScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c1, d1, d2 := customer(), driver(), driver()

	r := createPending(t, svc, c1)

	accepted, err := svc.AcceptRide(ctx, d1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	assert.Equal(t, d1.ID, *accepted.DriverID)

	_, err = svc.AcceptRide(ctx, d2, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "second driver must not claim the ride")

	// completed is not reachable from accepted; must pass through picked_up
	_, err = svc.AdvanceStatus(ctx, d1, r.ID, ride.StatusCompleted)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	picked, err := svc.AdvanceStatus(ctx, d1, r.ID, ride.StatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPickedUp, picked.Status)
	assertDriverInvariant(t, picked)

	done, err := svc.AdvanceStatus(ctx, d1, r.ID, ride.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCompleted, done.Status)
	assertDriverInvariant(t, done)
}

// TestAdvanceStatus_PickupFromPending tests the rejected shortcut never mutates
func TestAdvanceStatus_PickupFromPending(t *testing.T) {
	svc, rides, _ := newTestService(t)
	ctx := context.Background()
	d := driver()

	r := createPending(t, svc, customer())

	_, err := svc.AdvanceStatus(ctx, d, r.ID, ride.StatusPickedUp)
	require.Error(t, err)

	stored, err := rides.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPending, stored.Status, "rejected action must not mutate the ride")
	assert.Nil(t, stored.DriverID)
}

// TestAdvanceStatus_OnlyAssignedDriver tests driver ownership
func TestAdvanceStatus_OnlyAssignedDriver(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d1, d2 := driver(), driver()

	r := createPending(t, svc, customer())
	_, err := svc.AcceptRide(ctx, d1, r.ID)
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(ctx, d2, r.ID, ride.StatusPickedUp)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestAdvanceStatus_RejectsBadTargets tests target validation
func TestAdvanceStatus_RejectsBadTargets(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := driver()

	r := createPending(t, svc, customer())
	_, err := svc.AcceptRide(ctx, d, r.ID)
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(ctx, d, r.ID, ride.StatusAccepted)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.AdvanceStatus(ctx, d, r.ID, ride.StatusPending)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// TestCancelRide_ByCustomer tests cancellation from pending and accepted
func TestCancelRide_ByCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	t.Run("from pending", func(t *testing.T) {
		c := customer()
		r := createPending(t, svc, c)

		cancelled, err := svc.CancelRide(ctx, c, r.ID)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)
		assertDriverInvariant(t, cancelled)
	})

	t.Run("from accepted releases the driver", func(t *testing.T) {
		c := customer()
		r := createPending(t, svc, c)
		_, err := svc.AcceptRide(ctx, driver(), r.ID)
		require.NoError(t, err)

		cancelled, err := svc.CancelRide(ctx, c, r.ID)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusCancelled, cancelled.Status)
		assertDriverInvariant(t, cancelled)
	})

	t.Run("not after pickup", func(t *testing.T) {
		c := customer()
		d := driver()
		r := createPending(t, svc, c)
		_, err := svc.AcceptRide(ctx, d, r.ID)
		require.NoError(t, err)
		_, err = svc.AdvanceStatus(ctx, d, r.ID, ride.StatusPickedUp)
		require.NoError(t, err)

		_, err = svc.CancelRide(ctx, c, r.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

// TestCancelRide_NotOwner tests that a stranger customer is always Forbidden
func TestCancelRide_NotOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	owner, stranger := customer(), customer()
	d := driver()

	r := createPending(t, svc, owner)

	// pending
	_, err := svc.CancelRide(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// accepted
	_, err = svc.AcceptRide(ctx, d, r.ID)
	require.NoError(t, err)
	_, err = svc.CancelRide(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// picked up: ownership is checked before transition legality
	_, err = svc.AdvanceStatus(ctx, d, r.ID, ride.StatusPickedUp)
	require.NoError(t, err)
	_, err = svc.CancelRide(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestCancelRide_Idempotence tests that a second cancel is rejected, not a no-op success
func TestCancelRide_Idempotence(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := customer()

	r := createPending(t, svc, c)
	_, err := svc.CancelRide(ctx, c, r.ID)
	require.NoError(t, err)

	_, err = svc.CancelRide(ctx, c, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

// TestUpdateRideFields tests route edits while pending
func TestUpdateRideFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := customer()

	r := createPending(t, svc, c)

	newPickup := "C"
	newPrice := 25.0
	updated, err := svc.UpdateRideFields(ctx, c, r.ID, UpdateRideInput{
		Pickup: &newPickup,
		Price:  &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, "C", updated.Pickup)
	assert.Equal(t, "B", updated.Destination, "unset fields stay untouched")
	assert.Equal(t, 25.0, updated.Price)

	// frozen once accepted
	_, err = svc.AcceptRide(ctx, driver(), r.ID)
	require.NoError(t, err)
	_, err = svc.UpdateRideFields(ctx, c, r.ID, UpdateRideInput{Pickup: &newPickup})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// only the owner
	_, err = svc.UpdateRideFields(ctx, customer(), r.ID, UpdateRideInput{Pickup: &newPickup})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestGetRideStatus_Visibility tests the view policy row
func TestGetRideStatus_Visibility(t *testing.T) {
	svc, _, users := newTestService(t)
	ctx := context.Background()
	c, d := customer(), driver()

	require.NoError(t, users.Create(ctx, &user.Account{
		ID: d.ID, Name: "Dana", Email: "dana@example.com", Role: user.RoleDriver,
		VehicleMake: "Toyota Vios", VehiclePlate: "WXB 1234",
	}))

	r := createPending(t, svc, c)
	_, err := svc.AcceptRide(ctx, d, r.ID)
	require.NoError(t, err)

	// owner sees the driver and vehicle summary
	detail, err := svc.GetRideStatus(ctx, c, r.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Driver)
	assert.Equal(t, "Dana", detail.Driver.Name)
	assert.Equal(t, "WXB 1234", detail.Driver.VehiclePlate)

	// assigned driver sees it
	_, err = svc.GetRideStatus(ctx, d, r.ID)
	assert.NoError(t, err)

	// admin sees it
	_, err = svc.GetRideStatus(ctx, admin(), r.ID)
	assert.NoError(t, err)

	// strangers do not
	_, err = svc.GetRideStatus(ctx, customer(), r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.GetRideStatus(ctx, driver(), r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestListAvailableRides tests the pending listing
func TestListAvailableRides(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := driver()

	r1 := createPending(t, svc, customer())
	r2 := createPending(t, svc, customer())
	_, err := svc.AcceptRide(ctx, d, r2.ID)
	require.NoError(t, err)

	listed, err := svc.ListAvailableRides(ctx, d)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, r1.ID, listed[0].ID)

	// customers may not browse the queue
	_, err = svc.ListAvailableRides(ctx, customer())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestModeration tests admin block/unblock and analytics
func TestModeration(t *testing.T) {
	svc, _, users := newTestService(t)
	ctx := context.Background()

	target := &user.Account{ID: uuid.New(), Name: "Rude Rider", Email: "rude@example.com", Role: user.RoleCustomer}
	require.NoError(t, users.Create(ctx, target))

	err := svc.SetAccountBlocked(ctx, admin(), target.ID, true)
	require.NoError(t, err)
	stored, err := users.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, stored.Blocked)

	err = svc.SetAccountBlocked(ctx, admin(), target.ID, false)
	require.NoError(t, err)
	stored, _ = users.GetByID(ctx, target.ID)
	assert.False(t, stored.Blocked)

	// non-admins are rejected
	err = svc.SetAccountBlocked(ctx, customer(), target.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	err = svc.SetAccountBlocked(ctx, driver(), target.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// unknown account
	err = svc.SetAccountBlocked(ctx, admin(), uuid.New(), true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	r := createPending(t, svc, customer())
	_ = r
	analytics, err := svc.GetAnalytics(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.AccountsByRole[user.RoleCustomer])
	assert.Equal(t, 1, analytics.RidesByStatus[ride.StatusPending])

	_, err = svc.GetAnalytics(ctx, driver())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestDriverInvariant_AfterSequences runs several operation sequences and
// checks the driver-attachment rule after every step.
func TestDriverInvariant_AfterSequences(t *testing.T) {
	svc, rides, _ := newTestService(t)
	ctx := context.Background()

	type step func(c, d identity.Actor, id uuid.UUID) error
	accept := func(_, d identity.Actor, id uuid.UUID) error {
		_, err := svc.AcceptRide(ctx, d, id)
		return err
	}
	pickup := func(_, d identity.Actor, id uuid.UUID) error {
		_, err := svc.AdvanceStatus(ctx, d, id, ride.StatusPickedUp)
		return err
	}
	complete := func(_, d identity.Actor, id uuid.UUID) error {
		_, err := svc.AdvanceStatus(ctx, d, id, ride.StatusCompleted)
		return err
	}
	cancelCust := func(c, _ identity.Actor, id uuid.UUID) error {
		_, err := svc.CancelRide(ctx, c, id)
		return err
	}
	cancelDrv := func(_, d identity.Actor, id uuid.UUID) error {
		_, err := svc.AdvanceStatus(ctx, d, id, ride.StatusCancelled)
		return err
	}

	sequences := [][]step{
		{accept, pickup, complete},
		{cancelCust},
		{accept, cancelCust},
		{accept, cancelDrv},
		{accept, pickup, cancelCust}, // fails at the last step
		{pickup},                     // fails immediately
	}

	for _, seq := range sequences {
		c, d := customer(), driver()
		r := createPending(t, svc, c)
		for _, st := range seq {
			_ = st(c, d, r.ID) // failures are fine; the invariant must hold regardless
			stored, err := rides.GetByID(ctx, r.ID)
			require.NoError(t, err)
			assertDriverInvariant(t, stored)
		}
	}
}
