package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes. The session middleware is
// injected so tests can swap it out.
func SetupRoutes(router *gin.Engine, handler Handler, session gin.HandlerFunc) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication lifecycle
		v1.GET("/auth/nonce", handler.GetNonce)
		v1.POST("/auth/signup", handler.SignUp)
		v1.POST("/auth/signin", handler.SignIn)
		v1.POST("/auth/signout", handler.SignOut)
		v1.GET("/auth/refresh-token", handler.RefreshToken)
		v1.GET("/auth/me", session, handler.Me)

		// Notifications (all guarded)
		v1.GET("/notifications", session, handler.ListNotifications)
		v1.GET("/notifications/sse", session, handler.NotificationSSE)
		v1.PATCH("/notifications/:id", session, handler.MarkNotificationRead)

		// Donation pools (reads are public, creation is guarded)
		v1.POST("/pools", session, handler.CreatePool)
		v1.GET("/pools", handler.ListPools)
		v1.GET("/pools/:idHash", handler.GetPool)
		v1.GET("/pools/:idHash/donations", handler.ListPoolDonations)
	}
}
