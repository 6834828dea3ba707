package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/spacebook/internal/model"
)

// DefaultCurrency is used when a payment request carries none.
const DefaultCurrency = "USD"

// NewPayment builds a REQUESTED payment for a reservation.
func NewPayment(r *model.Reservation, guestID uint64, amountCents int64, currency, method string, now time.Time) (*model.Payment, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidInput)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return &model.Payment{
		ReservationID: r.ID,
		GuestID:       guestID,
		AmountCents:   amountCents,
		Currency:      currency,
		Method:        method,
		Status:        model.PaymentRequested,
		RequestedAt:   now,
	}, nil
}

// Complete moves a REQUESTED payment to COMPLETED.  There is no path back
// from COMPLETED, FAILED or REFUNDED.
func Complete(p *model.Payment, transactionRef string, now time.Time) error {
	if p.Status != model.PaymentRequested {
		return invalidPaymentState(p, "complete")
	}
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return fmt.Errorf("%w: transaction reference is required", ErrInvalidInput)
	}
	p.Status = model.PaymentCompleted
	p.TransactionRef = &ref
	p.CompletedAt = &now
	return nil
}

// Fail moves a REQUESTED payment to FAILED.  A retry needs a new payment.
func Fail(p *model.Payment, reason string, now time.Time) error {
	if p.Status != model.PaymentRequested {
		return invalidPaymentState(p, "fail")
	}
	p.Status = model.PaymentFailed
	if reason = strings.TrimSpace(reason); reason != "" {
		p.FailureReason = &reason
	}
	p.FailedAt = &now
	return nil
}

// Refund moves a COMPLETED payment to REFUNDED.
func Refund(p *model.Payment, now time.Time) error {
	if p.Status != model.PaymentCompleted {
		return invalidPaymentState(p, "refund")
	}
	p.Status = model.PaymentRefunded
	p.RefundedAt = &now
	return nil
}

func invalidPaymentState(p *model.Payment, action string) error {
	return fmt.Errorf("%w: cannot %s payment %d in status %s", ErrInvalidState, action, p.ID, p.Status)
}
