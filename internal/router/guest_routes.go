package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/handler"
	"github.com/iliyamo/spacebook/internal/middleware"
	"github.com/iliyamo/spacebook/internal/model"
)

// RegisterGuest registers guest-scoped endpoints on the authenticated /v1
// group: requesting and cancelling reservations and paying for them.
func RegisterGuest(g *echo.Group, r *handler.ReservationHandler, p *handler.PaymentHandler) {
	guest := middleware.RequireRole(model.RoleGuest)

	g.POST("/reservations", r.Create, guest)
	g.GET("/my-reservations", r.ListMine, guest)
	g.POST("/payments", p.Create, guest)

	// Guests cancel their own reservations; SYSTEM cancels on their behalf.
	g.POST("/reservations/:id/cancel", r.Cancel, middleware.RequireRole(model.RoleGuest, model.RoleSystem))
	g.GET("/payments/:id", p.Get, middleware.RequireRole(model.RoleGuest, model.RoleSystem))
}
