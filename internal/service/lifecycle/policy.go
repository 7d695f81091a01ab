package lifecycle

import (
	"fmt"

	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	apperrors "github.com/cityride/dispatch/pkg/errors"
)

// Op is an operation an actor requests against the ride lifecycle.
type Op string

const (
	OpCreate        Op = "create_ride"
	OpListAvailable Op = "list_available"
	OpAccept        Op = "accept_ride"
	OpUpdateFields  Op = "update_ride_fields"
	OpAdvance       Op = "advance_status"
	OpCancel        Op = "cancel_ride"
	OpView          Op = "view_ride"
	OpModerate      Op = "moderate"
)

// rule is one row of the authorization table: which roles may request
// the op, and what ownership relation the actor must hold to the ride.
type rule struct {
	roles   []user.Role
	owns    func(actor identity.Actor, r *ride.Ride) bool
	ownsMsg string
}

// policy is the single decision table consulted by every operation.
// Role and ownership failures carry different diagnostics but are the
// same Forbidden outcome for the caller.
var policy = map[Op]rule{
	OpCreate:        {roles: []user.Role{user.RoleCustomer}},
	OpListAvailable: {roles: []user.Role{user.RoleDriver}},
	OpAccept: {
		roles:   []user.Role{user.RoleDriver},
		owns:    func(_ identity.Actor, r *ride.Ride) bool { return !r.HasDriver() },
		ownsMsg: "ride already has a driver",
	},
	OpUpdateFields: {
		roles:   []user.Role{user.RoleCustomer},
		owns:    func(a identity.Actor, r *ride.Ride) bool { return r.IsCustomer(a.ID) },
		ownsMsg: "only the ride's customer may update it",
	},
	OpAdvance: {
		roles:   []user.Role{user.RoleDriver},
		owns:    func(a identity.Actor, r *ride.Ride) bool { return r.IsDriver(a.ID) },
		ownsMsg: "only the ride's driver may advance it",
	},
	OpCancel: {
		roles:   []user.Role{user.RoleCustomer},
		owns:    func(a identity.Actor, r *ride.Ride) bool { return r.IsCustomer(a.ID) },
		ownsMsg: "only the ride's customer may cancel it",
	},
	OpView: {
		roles: []user.Role{user.RoleCustomer, user.RoleDriver, user.RoleAdmin},
		owns: func(a identity.Actor, r *ride.Ride) bool {
			return a.Role == user.RoleAdmin || r.IsCustomer(a.ID) || r.IsDriver(a.ID)
		},
		ownsMsg: "ride belongs to another customer and driver",
	},
	OpModerate: {roles: []user.Role{user.RoleAdmin}},
}

// Authorize decides whether the actor may perform the op on the ride.
// Deterministic, no I/O. The ride may be nil for ops that do not target
// an existing ride (create, list, moderate).
func Authorize(actor identity.Actor, op Op, r *ride.Ride) error {
	ru, ok := policy[op]
	if !ok {
		return apperrors.Forbidden(fmt.Sprintf("unknown operation %q", op))
	}

	roleOK := false
	for _, role := range ru.roles {
		if actor.Role == role {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return apperrors.Forbidden(fmt.Sprintf("%s requires role %v", op, ru.roles))
	}

	if ru.owns != nil {
		if r == nil {
			return apperrors.Forbidden(fmt.Sprintf("%s targets a specific ride", op))
		}
		if !ru.owns(actor, r) {
			return apperrors.Forbidden(ru.ownsMsg)
		}
	}
	return nil
}
