package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/api/dto"
	"github.com/cityride/dispatch/internal/api/middleware"
	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/identity"
	"github.com/cityride/dispatch/internal/service/lifecycle"
)

// actorAndRideID pulls the verified actor and the :id path parameter.
func (h *Handlers) actorAndRideID(c *gin.Context) (identity.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing identity"})
		return identity.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid ride id"})
		return identity.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// CreateRide handles POST /v1/rides
func (h *Handlers) CreateRide(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing identity"})
		return
	}

	var req dto.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	r, err := h.Lifecycle.CreateRide(c.Request.Context(), actor, lifecycle.CreateRideInput{
		Pickup:      req.Pickup,
		Destination: req.Destination,
		Price:       req.Price,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rideResponse(r))
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	actor, id, ok := h.actorAndRideID(c)
	if !ok {
		return
	}

	detail, err := h.Lifecycle.GetRideStatus(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.RideDetailResponse{Ride: rideResponse(&detail.Ride)}
	if detail.Driver != nil {
		resp.Driver = &dto.DriverSummaryResponse{
			ID:           detail.Driver.ID,
			Name:         detail.Driver.Name,
			VehicleMake:  detail.Driver.VehicleMake,
			VehiclePlate: detail.Driver.VehiclePlate,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListAvailableRides handles GET /v1/rides/available
func (h *Handlers) ListAvailableRides(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing identity"})
		return
	}

	rides, err := h.Lifecycle.ListAvailableRides(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.RideResponse, 0, len(rides))
	for i := range rides {
		out = append(out, rideResponse(&rides[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rides": out})
}

// UpdateRide handles PATCH /v1/rides/:id
func (h *Handlers) UpdateRide(c *gin.Context) {
	actor, id, ok := h.actorAndRideID(c)
	if !ok {
		return
	}

	var req dto.UpdateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	r, err := h.Lifecycle.UpdateRideFields(c.Request.Context(), actor, id, lifecycle.UpdateRideInput{
		Pickup:      req.Pickup,
		Destination: req.Destination,
		Price:       req.Price,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideResponse(r))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *Handlers) AcceptRide(c *gin.Context) {
	actor, id, ok := h.actorAndRideID(c)
	if !ok {
		return
	}

	r, err := h.Lifecycle.AcceptRide(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideResponse(r))
}

// AdvanceStatus handles POST /v1/rides/:id/status
func (h *Handlers) AdvanceStatus(c *gin.Context) {
	actor, id, ok := h.actorAndRideID(c)
	if !ok {
		return
	}

	var req dto.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	target, err := ride.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	r, err := h.Lifecycle.AdvanceStatus(c.Request.Context(), actor, id, target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideResponse(r))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *Handlers) CancelRide(c *gin.Context) {
	actor, id, ok := h.actorAndRideID(c)
	if !ok {
		return
	}

	r, err := h.Lifecycle.CancelRide(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideResponse(r))
}
