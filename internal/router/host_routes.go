package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/handler"
	"github.com/iliyamo/spacebook/internal/middleware"
	"github.com/iliyamo/spacebook/internal/model"
)

// RegisterHost registers HOST-scoped endpoints on the authenticated /v1
// group.  Ownership of the space is checked by the orchestrator.
func RegisterHost(g *echo.Group, r *handler.ReservationHandler) {
	host := middleware.RequireRole(model.RoleHost)

	g.PATCH("/reservations/:id/confirm", r.Confirm, host)
	g.PATCH("/reservations/:id/reject", r.Reject, host)
	g.GET("/spaces/:id/reservations", r.ListForSpace, host)
}

// RegisterSystem registers settlement endpoints called by the payment
// gateway integration.  Only SYSTEM tokens are accepted.
func RegisterSystem(g *echo.Group, p *handler.PaymentHandler) {
	system := middleware.RequireRole(model.RoleSystem)

	g.POST("/payments/:id/complete", p.Complete, system)
	g.POST("/payments/:id/fail", p.Fail, system)
	g.POST("/payments/:id/refund", p.Refund, system)
}
