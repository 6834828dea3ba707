package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/config"
	"github.com/iliyamo/spacebook/internal/handler"
	"github.com/iliyamo/spacebook/internal/middleware"
	"github.com/iliyamo/spacebook/internal/model"
)

// Deps carries everything the HTTP surface needs.  Redis and Stream may be
// nil; rate limiting then runs per process and the SSE endpoint answers 503.
type Deps struct {
	Log           *zap.Logger
	JWTSecret     string
	RateLimit     config.RateLimitConfig
	Cache         config.CacheConfig
	Redis         *redis.Client
	// ResponseCache is shared with the booking core for invalidation.  When
	// nil one is built from Cache and Redis.
	ResponseCache *middleware.ResponseCache
	Booking       *booking.Orchestrator
	Notifications handler.NotificationStore
	Stream        handler.Streamer
	StripeSecret  string
	Health        []handler.HealthCheck
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, d.Health...)

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	cache := d.ResponseCache
	if cache == nil {
		cache = middleware.NewResponseCache(d.Cache, d.Redis)
	}
	reservations := handler.NewReservationHandler(d.Booking)
	payments := handler.NewPaymentHandler(d.Booking)

	RegisterPublic(e, reservations, handler.NewStripeWebhookHandler(d.Booking, d.StripeSecret), limit,
		cache.Middleware())

	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), limit)
	g.GET("/reservations/:id", reservations.Get,
		middleware.RequireRole(model.RoleGuest, model.RoleHost, model.RoleSystem))
	RegisterGuest(g, reservations, payments)
	RegisterHost(g, reservations)
	RegisterSystem(g, payments)
	RegisterNotifications(g, handler.NewNotificationHandler(d.Notifications, d.Stream))
	return e
}

// RegisterRoutes registers non-authenticated operational routes.
func RegisterRoutes(e *echo.Echo, checks ...handler.HealthCheck) {
	e.GET("/healthz", handler.Health(checks...))
}

// RegisterPublic registers endpoints that carry no JWT: the advisory busy
// calendar (cached) and the signed payment gateway webhook.
func RegisterPublic(e *echo.Echo, r *handler.ReservationHandler, w *handler.StripeWebhookHandler, limit, cache echo.MiddlewareFunc) {
	e.GET("/v1/spaces/:id/busy", r.Busy, limit, cache)
	e.POST("/v1/payments/webhook/stripe", w.Handle)
}

// RegisterNotifications registers the caller's notification inbox.  Every
// role has one.
func RegisterNotifications(g *echo.Group, h *handler.NotificationHandler) {
	member := middleware.RequireRole(model.RoleGuest, model.RoleHost, model.RoleSystem)

	g.GET("/notifications", h.List, member)
	g.GET("/notifications/unread-count", h.UnreadCount, member)
	g.GET("/notifications/stream", h.StreamEvents, member)
	g.PATCH("/notifications/read-all", h.MarkAllRead, member)
	g.PATCH("/notifications/:id/read", h.MarkRead, member)
	g.DELETE("/notifications/:id", h.Delete, member)
}
