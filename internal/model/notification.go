package model

import "time"

// NotificationType is the enumerated category of a notification.
type NotificationType string

const (
    NotifReservationCreated   NotificationType = "RESERVATION_CREATED"
    NotifReservationConfirmed NotificationType = "RESERVATION_CONFIRMED"
    NotifReservationRejected  NotificationType = "RESERVATION_REJECTED"
    NotifReservationCancelled NotificationType = "RESERVATION_CANCELLED"
    NotifPaymentCompleted     NotificationType = "PAYMENT_COMPLETED"
    NotifPaymentFailed        NotificationType = "PAYMENT_FAILED"
    NotifPaymentRefunded      NotificationType = "PAYMENT_REFUNDED"
    NotifCommentReply         NotificationType = "COMMENT_REPLY"
    NotifCommentOnPost        NotificationType = "COMMENT_ON_POST"
)

// Notification is a message persisted for one receiver.  Only IsRead is
// ever updated after creation.
type Notification struct {
    ID         uint64           `db:"id" json:"id"`
    ReceiverID uint64           `db:"receiver_id" json:"receiverId"`
    Content    string           `db:"content" json:"content"`
    Type       NotificationType `db:"type" json:"type"`
    IsRead     bool             `db:"is_read" json:"isRead"`
    CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationPayload is what is pushed on a receiver's real-time topic.
type NotificationPayload struct {
    ID        uint64           `json:"id"`
    Content   string           `json:"content"`
    IsRead    bool             `json:"isRead"`
    Type      NotificationType `json:"type"`
    CreatedAt time.Time        `json:"createdAt"`
}

// Payload converts the notification into its pushed form.
func (n *Notification) Payload() NotificationPayload {
    return NotificationPayload{
        ID:        n.ID,
        Content:   n.Content,
        IsRead:    n.IsRead,
        Type:      n.Type,
        CreatedAt: n.CreatedAt,
    }
}
