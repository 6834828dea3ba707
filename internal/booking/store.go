package booking

import (
	"context"
	"time"

	"github.com/iliyamo/spacebook/internal/model"
	"github.com/iliyamo/spacebook/internal/queue"
)

// ConflictQuerier counts live reservations overlapping a slot.
type ConflictQuerier interface {
	CountOverlapping(ctx context.Context, spaceID uint64, slot model.Slot, excludeID uint64) (int, error)
}

// Tx is the set of writes available inside one store transaction.  Every
// reservation and payment mutation goes through these methods after a
// state machine transition has been applied to the record.
type Tx interface {
	ConflictQuerier

	// LockSpace serializes reservation inserts for one space until the
	// transaction ends.  It returns ErrNotFound when the space is absent.
	LockSpace(ctx context.Context, spaceID uint64) error
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// LockReservation loads a reservation and holds its row lock.
	LockReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, r *model.Reservation) error

	InsertPayment(ctx context.Context, p *model.Payment) error
	LockPayment(ctx context.Context, id uint64) (*model.Payment, error)
	UpdatePayment(ctx context.Context, p *model.Payment) error
	// CountLivePayments counts REQUESTED or COMPLETED payments of a
	// reservation other than excludeID.
	CountLivePayments(ctx context.Context, reservationID, excludeID uint64) (int, error)
	// CompletedPaymentExists reports whether another payment of the
	// reservation is COMPLETED.
	CompletedPaymentExists(ctx context.Context, reservationID, excludeID uint64) (bool, error)
}

// Store is the persistence boundary of the booking core.  InTx runs fn in a
// single transaction at the strictest isolation the backend offers; any
// error returned by fn rolls the whole unit back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
	Payment(ctx context.Context, id uint64) (*model.Payment, error)
	ListReservationsByGuest(ctx context.Context, guestID uint64, limit, offset int) ([]model.Reservation, error)
	ListReservationsBySpace(ctx context.Context, spaceID uint64, limit, offset int) ([]model.Reservation, error)
	// LiveSlots returns the live intervals of a space intersecting [from, to).
	LiveSlots(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Slot, error)
}

// Directory resolves external entities by identifier.
type Directory interface {
	Space(ctx context.Context, id uint64) (*model.Space, error)
	User(ctx context.Context, id uint64) (*model.User, error)
}

// Notifier delivers a notification to one receiver.
type Notifier interface {
	Notify(ctx context.Context, receiverID uint64, content string, typ model.NotificationType) (*model.Notification, error)
}

// EventPublisher emits booking events to downstream consumers.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// SlotCache holds derived views of a space's availability, such as the
// cached busy calendar.  InvalidateSpace is called after every committed
// reservation write of the space.
type SlotCache interface {
	InvalidateSpace(ctx context.Context, spaceID uint64) error
}
