// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/router/handler"
	"darshan/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	BookingHandler  *handler.BookingHandler
	TrackingHandler *handler.TrackingHandler
	AccountHandler  *handler.AccountHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	bookingHandler  *handler.BookingHandler
	trackingHandler *handler.TrackingHandler
	accountHandler  *handler.AccountHandler
	adminHandler    *handler.AdminHandler
	authMiddleware  *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		bookingHandler:  params.BookingHandler,
		trackingHandler: params.TrackingHandler,
		accountHandler:  params.AccountHandler,
		adminHandler:    params.AdminHandler,
		authMiddleware:  params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Everything else requires a valid access token
	authed := e.Group("")
	authed.Use(r.authMiddleware.Authenticate)

	meGroup := authed.Group("/me")
	{
		meGroup.GET("", r.accountHandler.GetProfile)
		meGroup.POST("/application", r.accountHandler.SubmitApplication)
	}

	bookingsGroup := authed.Group("/bookings")
	{
		bookingsGroup.POST("", r.bookingHandler.CreateBooking)
		bookingsGroup.GET("", r.bookingHandler.ListMyBookings)
		bookingsGroup.GET("/:id", r.bookingHandler.GetBooking)
		bookingsGroup.POST("/:id/confirm", r.bookingHandler.ConfirmBooking)
		bookingsGroup.POST("/:id/cancel", r.bookingHandler.CancelBooking)
		bookingsGroup.POST("/:id/complete", r.bookingHandler.CompleteBooking)
		bookingsGroup.POST("/:id/journey", r.bookingHandler.StartJourney)
		bookingsGroup.GET("/:id/pass", r.bookingHandler.GetBookingPass)

		// Live tracking
		bookingsGroup.POST("/:id/location", r.trackingHandler.ReportLocation)
		bookingsGroup.PUT("/:id/eta", r.trackingHandler.SetEstimatedArrival)
		bookingsGroup.GET("/:id/tracking", r.trackingHandler.GetTracking)
		bookingsGroup.GET("/:id/tracking/stream", r.trackingHandler.StreamTracking)
	}

	// Provider routes require the "provider" role
	providerGroup := authed.Group("/provider")
	providerGroup.Use(r.authMiddleware.RequireRole(entity.RoleProvider))
	{
		providerGroup.GET("/bookings", r.bookingHandler.ListProviderBookings)
	}

	// Admin routes require the "admin" role
	adminGroup := authed.Group("/admin")
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.GET("/applications", r.adminHandler.ListApplications)
		adminGroup.POST("/applications/:userId/decision", r.adminHandler.DecideApplication)
		adminGroup.POST("/providers/:userId/revoke", r.adminHandler.RevokeProvider)
		adminGroup.POST("/providers/:userId/reconcile", r.adminHandler.ReconcileProvider)
	}
}
