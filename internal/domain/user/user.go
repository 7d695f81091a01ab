package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidAccount = errors.New("invalid account data")
)

// Role determines which lifecycle actions an account may perform.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a raw string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return Role(s), nil
	}
	return "", ErrInvalidAccount
}

// Account represents a registered user: a customer, a driver, or an
// administrator. Vehicle fields are only populated for drivers.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Blocked      bool      `json:"blocked"`
	VehicleMake  string    `json:"vehicle_make,omitempty"`
	VehiclePlate string    `json:"vehicle_plate,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsValid validates the account entity
func (a *Account) IsValid() error {
	if a.Name == "" || a.Email == "" {
		return ErrInvalidAccount
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return ErrInvalidAccount
	}
	return nil
}

// Repository defines the interface for account data access
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	CountByRole(ctx context.Context) (map[Role]int, error)
}
