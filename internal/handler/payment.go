package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

// PaymentHandler exposes payment requests and their settlement.
// Settlement routes are restricted to the SYSTEM role by the router.
type PaymentHandler struct {
	Booking *booking.Orchestrator
}

// NewPaymentHandler panics if the orchestrator is nil.
func NewPaymentHandler(b *booking.Orchestrator) *PaymentHandler {
	if b == nil {
		panic("nil orchestrator passed to NewPaymentHandler")
	}
	return &PaymentHandler{Booking: b}
}

type createPaymentRequest struct {
	GuestID       *uint64 `json:"guestId"`
	ReservationID uint64  `json:"reservationId" validate:"required"`
	Amount        int64   `json:"amount" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Method        string  `json:"method" validate:"required,max=50"`
}

// Create handles POST /v1/payments.  Amount is in minor units.
func (h *PaymentHandler) Create(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var body createPaymentRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	if ok, err := matchesActor(c, actor, body.GuestID); !ok {
		return err
	}
	p, err := h.Booking.RequestPayment(c.Request().Context(), actor.ID, body.ReservationID, body.Amount, body.Currency, body.Method)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

type completePaymentRequest struct {
	TransactionRef string `json:"transactionRef" validate:"required,max=255"`
}

type failPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// settlementResponse is the payment plus the reservation it settled.
type settlementResponse struct {
	*model.Payment
	Reservation *model.Reservation `json:"reservation"`
}

// Complete handles POST /v1/payments/:id/complete.
func (h *PaymentHandler) Complete(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var body completePaymentRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	return h.respond(c, func() (*booking.Settlement, error) {
		return h.Booking.SettlePayment(c.Request().Context(), id, model.SettleComplete, body.TransactionRef)
	})
}

// Fail handles POST /v1/payments/:id/fail.
func (h *PaymentHandler) Fail(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var body failPaymentRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	return h.respond(c, func() (*booking.Settlement, error) {
		return h.Booking.SettlePayment(c.Request().Context(), id, model.SettleFail, body.Reason)
	})
}

// Refund handles POST /v1/payments/:id/refund.
func (h *PaymentHandler) Refund(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	return h.respond(c, func() (*booking.Settlement, error) {
		return h.Booking.RefundPayment(c.Request().Context(), id)
	})
}

func (h *PaymentHandler) respond(c echo.Context, do func() (*booking.Settlement, error)) error {
	s, err := do()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, settlementResponse{Payment: s.Payment, Reservation: s.Reservation})
}

// Get handles GET /v1/payments/:id for the paying guest or the system.
func (h *PaymentHandler) Get(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	p, err := h.Booking.GetPayment(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
