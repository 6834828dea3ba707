package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

func intentEvent(typ stripe.EventType, object string) stripe.Event {
	return stripe.Event{ID: "evt_1", Type: typ, Data: &stripe.EventData{Raw: json.RawMessage(object)}}
}

func TestSettlementFromEvent(t *testing.T) {
	s, err := settlementFromEvent(intentEvent(stripe.EventTypePaymentIntentSucceeded,
		`{"id":"pi_1","metadata":{"payment_id":"12"}}`))
	require.NoError(t, err)
	assert.Equal(t, webhookSettlement{PaymentID: 12, Outcome: model.SettleComplete, Detail: "pi_1"}, s)

	s, err = settlementFromEvent(intentEvent(stripe.EventTypePaymentIntentCanceled,
		`{"id":"pi_2","metadata":{"payment_id":"13"},"cancellation_reason":"requested_by_customer"}`))
	require.NoError(t, err)
	assert.Equal(t, webhookSettlement{PaymentID: 13, Outcome: model.SettleFail, Detail: "payment intent canceled: requested_by_customer"}, s)

	s, err = settlementFromEvent(intentEvent(stripe.EventTypePaymentIntentCanceled,
		`{"id":"pi_3","metadata":{"payment_id":"14"}}`))
	require.NoError(t, err)
	assert.Equal(t, "payment intent canceled", s.Detail)
}

func TestAlreadyApplied(t *testing.T) {
	ref := "pi_1"
	completed := &model.Payment{Status: model.PaymentCompleted, TransactionRef: &ref}
	refunded := &model.Payment{Status: model.PaymentRefunded, TransactionRef: &ref}
	failed := &model.Payment{Status: model.PaymentFailed}

	complete := webhookSettlement{Outcome: model.SettleComplete, Detail: "pi_1"}
	assert.True(t, alreadyApplied(completed, complete))
	assert.True(t, alreadyApplied(refunded, complete))
	assert.False(t, alreadyApplied(completed, webhookSettlement{Outcome: model.SettleComplete, Detail: "pi_2"}))
	assert.False(t, alreadyApplied(failed, complete))

	fail := webhookSettlement{Outcome: model.SettleFail}
	assert.True(t, alreadyApplied(failed, fail))
	assert.False(t, alreadyApplied(completed, fail))
}

func TestSettlementFromEventRejectsUnusableEvents(t *testing.T) {
	_, err := settlementFromEvent(intentEvent("charge.refunded", `{}`))
	assert.ErrorIs(t, err, errIgnoredEvent)

	_, err = settlementFromEvent(intentEvent(stripe.EventTypePaymentIntentPaymentFailed,
		`{"id":"pi_2","metadata":{"payment_id":"13"},"last_payment_error":{"message":"card declined"}}`))
	assert.ErrorIs(t, err, errIgnoredEvent, "the intent can still succeed after a failed attempt")

	_, err = settlementFromEvent(stripe.Event{Type: stripe.EventTypePaymentIntentSucceeded})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)

	for _, object := range []string{
		`{"id":"pi_1"}`,
		`{"id":"pi_1","metadata":{"payment_id":"0"}}`,
		`{"id":"pi_1","metadata":{"payment_id":"abc"}}`,
		`[1,2]`,
	} {
		_, err = settlementFromEvent(intentEvent(stripe.EventTypePaymentIntentSucceeded, object))
		assert.ErrorIs(t, err, booking.ErrInvalidInput, object)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 404, StatusFor(booking.ErrNotFound))
	assert.Equal(t, 403, StatusFor(booking.ErrUnauthorized))
	assert.Equal(t, 409, StatusFor(booking.ErrConflict))
	assert.Equal(t, 409, StatusFor(booking.ErrInvalidState))
	assert.Equal(t, 400, StatusFor(booking.ErrInvalidInput))
	assert.Equal(t, 500, StatusFor(assert.AnError))
}
