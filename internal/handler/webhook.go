package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

const maxWebhookBody = int64(65536)

// errIgnoredEvent marks gateway events that carry no settlement.
var errIgnoredEvent = errors.New("event ignored")

// StripeWebhookHandler settles payments from signed Stripe events.  The
// payment id travels in the PaymentIntent metadata under "payment_id".
type StripeWebhookHandler struct {
	Booking *booking.Orchestrator
	Secret  string
}

func NewStripeWebhookHandler(b *booking.Orchestrator, secret string) *StripeWebhookHandler {
	if b == nil {
		panic("nil orchestrator passed to NewStripeWebhookHandler")
	}
	return &StripeWebhookHandler{Booking: b, Secret: secret}
}

// webhookSettlement is what one gateway event asks the orchestrator to do.
type webhookSettlement struct {
	PaymentID uint64
	Outcome   model.SettleOutcome
	Detail    string
}

// settlementFromEvent maps payment_intent.succeeded and
// payment_intent.canceled onto a settlement.  payment_intent.payment_failed
// is not final at Stripe, the customer may retry the same intent, so it is
// ignored along with every other type.
func settlementFromEvent(ev stripe.Event) (webhookSettlement, error) {
	var outcome model.SettleOutcome
	switch ev.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		outcome = model.SettleComplete
	case stripe.EventTypePaymentIntentCanceled:
		outcome = model.SettleFail
	default:
		return webhookSettlement{}, errIgnoredEvent
	}
	if ev.Data == nil {
		return webhookSettlement{}, fmt.Errorf("%w: event %s has no data", booking.ErrInvalidInput, ev.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return webhookSettlement{}, fmt.Errorf("%w: decode payment intent: %v", booking.ErrInvalidInput, err)
	}
	id, err := strconv.ParseUint(pi.Metadata["payment_id"], 10, 64)
	if err != nil || id == 0 {
		return webhookSettlement{}, fmt.Errorf("%w: payment intent %s has no payment_id metadata", booking.ErrInvalidInput, pi.ID)
	}
	s := webhookSettlement{PaymentID: id, Outcome: outcome}
	if outcome == model.SettleComplete {
		s.Detail = pi.ID
	} else if pi.CancellationReason != "" {
		s.Detail = "payment intent canceled: " + string(pi.CancellationReason)
	} else {
		s.Detail = "payment intent canceled"
	}
	return s, nil
}

// alreadyApplied reports whether p already reflects s, which is how a
// redelivered event looks.
func alreadyApplied(p *model.Payment, s webhookSettlement) bool {
	switch s.Outcome {
	case model.SettleComplete:
		return p.TransactionRef != nil && *p.TransactionRef == s.Detail
	case model.SettleFail:
		return p.Status == model.PaymentFailed
	}
	return false
}

// Handle serves POST /v1/payments/webhook/stripe.
func (h *StripeWebhookHandler) Handle(c echo.Context) error {
	if h.Secret == "" {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "webhook not configured"})
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "error reading request body"})
	}
	ev, err := webhook.ConstructEventWithOptions(payload, c.Request().Header.Get("Stripe-Signature"), h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "webhook signature verification failed"})
	}

	s, err := settlementFromEvent(ev)
	if errors.Is(err, errIgnoredEvent) {
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}
	if err != nil {
		return writeError(c, err)
	}
	ctx := c.Request().Context()
	res, err := h.Booking.SettlePayment(ctx, s.PaymentID, s.Outcome, s.Detail)
	if errors.Is(err, booking.ErrInvalidState) {
		if p, lookupErr := h.Booking.GetPayment(ctx, model.SystemActor, s.PaymentID); lookupErr == nil && alreadyApplied(p, s) {
			return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
		}
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, settlementResponse{Payment: res.Payment, Reservation: res.Reservation})
}
