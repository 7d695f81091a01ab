package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest creates a new account. Vehicle fields only apply to
// driver registrations.
type RegisterRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         string `json:"role" binding:"required,oneof=customer driver"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
}

// LoginRequest exchanges credentials for a token
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token     string    `json:"token"`
	AccountID uuid.UUID `json:"account_id"`
	Role      string    `json:"role"`
}

// CreateRideRequest represents a request for a new ride
type CreateRideRequest struct {
	Pickup      string  `json:"pickup" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Notes       string  `json:"notes,omitempty"`
}

// UpdateRideRequest carries optional field edits; omitted fields are unchanged
type UpdateRideRequest struct {
	Pickup      *string  `json:"pickup,omitempty"`
	Destination *string  `json:"destination,omitempty"`
	Price       *float64 `json:"price,omitempty" binding:"omitempty,gt=0"`
	Notes       *string  `json:"notes,omitempty"`
}

// AdvanceStatusRequest names the target lifecycle status
type AdvanceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=picked_up completed cancelled"`
}

// RideResponse is the wire form of a ride
type RideResponse struct {
	ID          uuid.UUID  `json:"id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	Status      string     `json:"status"`
	Pickup      string     `json:"pickup"`
	Destination string     `json:"destination"`
	Price       float64    `json:"price"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// DriverSummaryResponse is the driver/vehicle slice shown to the customer
type DriverSummaryResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	VehicleMake  string    `json:"vehicle_make,omitempty"`
	VehiclePlate string    `json:"vehicle_plate,omitempty"`
}

// RideDetailResponse is a ride plus its driver summary when assigned
type RideDetailResponse struct {
	Ride   RideResponse           `json:"ride"`
	Driver *DriverSummaryResponse `json:"driver,omitempty"`
}

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
