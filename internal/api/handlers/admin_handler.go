package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/api/dto"
	"github.com/cityride/dispatch/internal/api/middleware"
	"github.com/cityride/dispatch/internal/identity"
)

func (h *Handlers) actorAndAccountID(c *gin.Context) (identity.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing identity"})
		return identity.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid account id"})
		return identity.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// BlockAccount handles POST /v1/admin/accounts/:id/block
func (h *Handlers) BlockAccount(c *gin.Context) {
	h.setBlocked(c, true)
}

// UnblockAccount handles POST /v1/admin/accounts/:id/unblock
func (h *Handlers) UnblockAccount(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *Handlers) setBlocked(c *gin.Context, blocked bool) {
	actor, id, ok := h.actorAndAccountID(c)
	if !ok {
		return
	}

	if err := h.Lifecycle.SetAccountBlocked(c.Request.Context(), actor, id, blocked); err != nil {
		h.respondError(c, err)
		return
	}
	// a fresh block must bite before the cached flag expires
	middleware.InvalidateBlockedFlag(c.Request.Context(), h.Redis, id.String())

	c.JSON(http.StatusOK, gin.H{"account_id": id, "blocked": blocked})
}

// GetAnalytics handles GET /v1/admin/analytics
func (h *Handlers) GetAnalytics(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing identity"})
		return
	}

	analytics, err := h.Lifecycle.GetAnalytics(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}
