package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/cityride/dispatch/internal/api/handlers"
	"github.com/cityride/dispatch/internal/api/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, auth *middleware.Auth, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/v1")
	{
		// Public auth endpoints
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		// Everything below requires a verified, unblocked identity.
		// Role and ownership decisions live in the lifecycle policy,
		// not in per-route guards.
		protected := v1.Group("")
		protected.Use(auth.Handler())

		rides := protected.Group("/rides")
		{
			rides.POST("", h.CreateRide)
			rides.GET("/available", h.ListAvailableRides)
			rides.GET("/:id", h.GetRide)
			rides.PATCH("/:id", h.UpdateRide)
			rides.POST("/:id/accept", h.AcceptRide)
			rides.POST("/:id/status", h.AdvanceStatus)
			rides.POST("/:id/cancel", h.CancelRide)
		}

		admin := protected.Group("/admin")
		{
			admin.POST("/accounts/:id/block", h.BlockAccount)
			admin.POST("/accounts/:id/unblock", h.UnblockAccount)
			admin.GET("/analytics", h.GetAnalytics)
		}
	}
}
