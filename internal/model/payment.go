package model

import "time"

// PaymentStatus is the lifecycle state of a payment instance.
type PaymentStatus string

const (
    PaymentRequested PaymentStatus = "REQUESTED"
    PaymentCompleted PaymentStatus = "COMPLETED"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentRefunded  PaymentStatus = "REFUNDED"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{
    PaymentRequested,
    PaymentCompleted,
    PaymentFailed,
    PaymentRefunded,
}

// IsTerminal reports whether the instance can no longer change.
func (s PaymentStatus) IsTerminal() bool {
    return s == PaymentFailed || s == PaymentRefunded
}

// IsLive reports whether the payment still counts towards its reservation
// (awaiting settlement or settled).
func (s PaymentStatus) IsLive() bool {
    return s == PaymentRequested || s == PaymentCompleted
}

// Payment is a monetary transaction that settles one reservation.  The
// payment owns the link: ReservationID always points at the reservation
// it pays for.
//
// Fields:
//  ID             – primary key identifier.
//  ReservationID  – reservation being paid for.
//  GuestID        – guest who pays.
//  AmountCents    – amount in minor units.
//  Currency       – ISO 4217 code.
//  Method         – payment method label (card, transfer, ...).
//  Status         – REQUESTED, COMPLETED, FAILED or REFUNDED.
//  TransactionRef – gateway reference, set on completion.
//  FailureReason  – reason supplied on failure.
//  RequestedAt    – creation timestamp.
//  CompletedAt    – set on completion.
//  FailedAt       – set on failure.
//  RefundedAt     – set on refund.
type Payment struct {
    ID             uint64        `db:"id" json:"id"`                                     // payments.id
    ReservationID  uint64        `db:"reservation_id" json:"reservationId"`              // payments.reservation_id
    GuestID        uint64        `db:"guest_id" json:"guestId"`                          // payments.guest_id
    AmountCents    int64         `db:"amount_cents" json:"amount"`                       // payments.amount_cents
    Currency       string        `db:"currency" json:"currency"`                         // payments.currency
    Method         string        `db:"method" json:"method"`                             // payments.method
    Status         PaymentStatus `db:"status" json:"status"`                             // payments.status
    TransactionRef *string       `db:"transaction_ref" json:"transactionRef,omitempty"`  // payments.transaction_ref (nullable)
    FailureReason  *string       `db:"failure_reason" json:"failureReason,omitempty"`    // payments.failure_reason (nullable)
    RequestedAt    time.Time     `db:"requested_at" json:"requestedAt"`                  // payments.requested_at
    CompletedAt    *time.Time    `db:"completed_at" json:"completedAt,omitempty"`        // payments.completed_at (nullable)
    FailedAt       *time.Time    `db:"failed_at" json:"failedAt,omitempty"`              // payments.failed_at (nullable)
    RefundedAt     *time.Time    `db:"refunded_at" json:"refundedAt,omitempty"`          // payments.refunded_at (nullable)
}

// SettleOutcome selects which terminal-ish transition SettlePayment drives.
type SettleOutcome string

const (
    SettleComplete SettleOutcome = "COMPLETE"
    SettleFail     SettleOutcome = "FAIL"
)
