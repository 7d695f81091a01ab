package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cityride/dispatch/internal/api/dto"
	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	"github.com/cityride/dispatch/internal/service/lifecycle"
	apperrors "github.com/cityride/dispatch/pkg/errors"
	"github.com/cityride/dispatch/pkg/logger"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Lifecycle *lifecycle.Service
	Users     user.Repository
	Tokens    *identity.TokenManager
	Redis     *redis.Client
	Logger    *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc *lifecycle.Service, users user.Repository, tokens *identity.TokenManager, redisClient *redis.Client, log *logger.Logger) *Handlers {
	return &Handlers{
		Lifecycle: svc,
		Users:     users,
		Tokens:    tokens,
		Redis:     redisClient,
		Logger:    log,
	}
}

// respondError maps any service error onto the uniform envelope. Internal
// faults are logged here; taxonomy outcomes were already decided upstream.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Code == "INTERNAL_ERROR" {
		h.Logger.Error("request failed", logger.String("path", c.FullPath()), logger.Err(err))
	}
	c.JSON(appErr.Status, dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}

func rideResponse(r *ride.Ride) dto.RideResponse {
	return dto.RideResponse{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		DriverID:    r.DriverID,
		Status:      string(r.Status),
		Pickup:      r.Pickup,
		Destination: r.Destination,
		Price:       r.Price,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		AcceptedAt:  r.AcceptedAt,
		CancelledAt: r.CancelledAt,
	}
}
