// Package queue defines message payloads exchanged over the message broker
// and the consumer for inbound board events.
package queue

// Queue names on the broker.  Both are declared durable.
const (
    BookingEventsQueue = "booking.events"
    BoardCommentsQueue = "board.comments"
)

// Booking event types.
const (
    EventReservationCreated   = "reservation.created"
    EventReservationConfirmed = "reservation.confirmed"
    EventReservationRejected  = "reservation.rejected"
    EventReservationCancelled = "reservation.cancelled"
    EventPaymentRequested     = "payment.requested"
    EventPaymentCompleted     = "payment.completed"
    EventPaymentFailed        = "payment.failed"
    EventPaymentRefunded      = "payment.refunded"
)

// BookingEvent is published after every committed reservation or payment
// transition.  It carries enough for downstream consumers (analytics,
// calendars, mailers) to act without querying the primary database.
type BookingEvent struct {
    Type          string  `json:"type"`
    ReservationID uint64  `json:"reservation_id"`
    SpaceID       uint64  `json:"space_id"`
    GuestID       uint64  `json:"guest_id"`
    HostID        uint64  `json:"host_id,omitempty"`
    Status        string  `json:"status"`
    PaymentID     *uint64 `json:"payment_id,omitempty"`
    PaymentStatus string  `json:"payment_status,omitempty"`
    AmountCents   int64   `json:"amount_cents,omitempty"`
    Currency      string  `json:"currency,omitempty"`
    StartsAt      string  `json:"starts_at"`
    EndsAt        string  `json:"ends_at"`
    OccurredAt    string  `json:"occurred_at"`
}

// CommentPostedEvent is consumed from the board service whenever a comment
// or reply is created.  Optional identifiers are omitted when not relevant.
type CommentPostedEvent struct {
    CommentID          uint64  `json:"comment_id"`
    AuthorID           uint64  `json:"author_id"`
    PostID             uint64  `json:"post_id"`
    PostHostID         uint64  `json:"post_host_id"`
    ParentCommentID    *uint64 `json:"parent_comment_id,omitempty"`
    ParentAuthorID     *uint64 `json:"parent_author_id,omitempty"`
    GuestParticipantID *uint64 `json:"guest_participant_id,omitempty"`
    Excerpt            string  `json:"excerpt"`
    PostedAt           string  `json:"posted_at"`
}

// IsReply reports whether the comment answers another comment.
func (e CommentPostedEvent) IsReply() bool { return e.ParentCommentID != nil }
