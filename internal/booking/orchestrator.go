package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/model"
	"github.com/iliyamo/spacebook/internal/queue"
)

// Orchestrator composes the availability checker and the two state
// machines into the user-facing booking operations.  Each write runs in a
// single store transaction; notifications and broker events are emitted
// only after that transaction commits and never fail the operation.
type Orchestrator struct {
	store    Store
	dir      Directory
	notifier Notifier
	events   EventPublisher
	slots    SlotCache
	log      *zap.Logger
	checker  AvailabilityChecker
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSlotCache registers a cache to invalidate after reservation writes.
func WithSlotCache(c SlotCache) Option {
	return func(o *Orchestrator) { o.slots = c }
}

// NewOrchestrator wires the booking core.  store and dir are required; a
// nil notifier or publisher disables that side effect.
func NewOrchestrator(store Store, dir Directory, notifier Notifier, events EventPublisher, log *zap.Logger, opts ...Option) *Orchestrator {
	if store == nil || dir == nil {
		panic("booking: nil dependency passed to NewOrchestrator")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		store:    store,
		dir:      dir,
		notifier: notifier,
		events:   events,
		log:      log.Named("booking"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Settlement is the committed result of a payment transition.
type Settlement struct {
	Payment            *model.Payment
	Reservation        *model.Reservation
	ReservationChanged bool
}

// ReserveSpace creates a PENDING reservation for [start, end) if no live
// reservation of the space overlaps it.  The overlap check and the insert
// happen in one transaction holding the space lock.
func (o *Orchestrator) ReserveSpace(ctx context.Context, guestID, spaceID uint64, start, end time.Time) (*model.Reservation, error) {
	if _, err := o.dir.User(ctx, guestID); err != nil {
		return nil, fmt.Errorf("lookup guest %d: %w", guestID, err)
	}
	space, err := o.dir.Space(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("lookup space %d: %w", spaceID, err)
	}
	slot := StoredSlot(model.Slot{Start: start, End: end})
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidState)
	}

	var res *model.Reservation
	err = o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockSpace(ctx, spaceID); err != nil {
			return err
		}
		taken, err := o.checker.HasConflict(ctx, tx, spaceID, slot, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: space %d is already booked for the requested time", ErrConflict, spaceID)
		}
		r, err := NewReservation(spaceID, guestID, slot, o.stamp())
		if err != nil {
			return err
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("space_id", spaceID),
		zap.Uint64("guest_id", guestID))
	o.invalidate(ctx, spaceID)
	o.notify(ctx, space.HostID, hostNewRequestMessage(res, space), model.NotifReservationCreated)
	o.publish(ctx, reservationEvent(queue.EventReservationCreated, res, space))
	return res, nil
}

// ConfirmReservation is the host approving a PENDING reservation.
func (o *Orchestrator) ConfirmReservation(ctx context.Context, hostID, reservationID uint64) (*model.Reservation, error) {
	return o.transition(ctx, reservationID, queue.EventReservationConfirmed, "", func(r *model.Reservation, space *model.Space, now time.Time) error {
		return Confirm(r, space, hostID, now)
	})
}

// RejectReservation is the host declining a PENDING reservation.  reason
// is passed on to the guest verbatim.
func (o *Orchestrator) RejectReservation(ctx context.Context, hostID, reservationID uint64, reason string) (*model.Reservation, error) {
	return o.transition(ctx, reservationID, queue.EventReservationRejected, reason, func(r *model.Reservation, space *model.Space, now time.Time) error {
		return Reject(r, space, hostID, now)
	})
}

// CancelReservation cancels a live reservation on behalf of its guest or
// the system.  The slot becomes available as soon as the call commits.
func (o *Orchestrator) CancelReservation(ctx context.Context, actor model.Actor, reservationID uint64) (*model.Reservation, error) {
	return o.transition(ctx, reservationID, queue.EventReservationCancelled, "", func(r *model.Reservation, _ *model.Space, now time.Time) error {
		return Cancel(r, actor, now)
	})
}

func (o *Orchestrator) transition(ctx context.Context, reservationID uint64, eventType, reason string, apply func(*model.Reservation, *model.Space, time.Time) error) (*model.Reservation, error) {
	current, err := o.store.Reservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", reservationID, err)
	}
	space, err := o.dir.Space(ctx, current.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("lookup space %d: %w", current.SpaceID, err)
	}

	var res *model.Reservation
	err = o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := apply(r, space, o.stamp()); err != nil {
			return err
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("reservation status changed",
		zap.Uint64("reservation_id", res.ID),
		zap.String("status", string(res.Status)))
	o.invalidate(ctx, res.SpaceID)
	o.notifyGuestOfStatus(ctx, res, space, reason)
	o.publish(ctx, reservationEvent(eventType, res, space))
	return res, nil
}

// RequestPayment opens a REQUESTED payment for a live reservation owned by
// guestID.  A reservation holds at most one REQUESTED or COMPLETED payment
// at a time; a retry after a failure needs a new reservation.
func (o *Orchestrator) RequestPayment(ctx context.Context, guestID, reservationID uint64, amountCents int64, currency, method string) (*model.Payment, error) {
	var (
		pay *model.Payment
		res *model.Reservation
	)
	err := o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.GuestID != guestID {
			return fmt.Errorf("%w: reservation %d belongs to another guest", ErrUnauthorized, reservationID)
		}
		if !r.Status.IsLive() {
			return invalidReservationState(r, "pay for")
		}
		if r.PaymentID != nil {
			return fmt.Errorf("%w: reservation %d is already paid", ErrConflict, reservationID)
		}
		live, err := tx.CountLivePayments(ctx, r.ID, 0)
		if err != nil {
			return err
		}
		if live > 0 {
			return fmt.Errorf("%w: reservation %d already has an open payment", ErrConflict, reservationID)
		}
		p, err := NewPayment(r, guestID, amountCents, currency, method, o.stamp())
		if err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		pay, res = p, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("payment requested",
		zap.Uint64("payment_id", pay.ID),
		zap.Uint64("reservation_id", reservationID),
		zap.Int64("amount_cents", amountCents))
	o.publish(ctx, paymentEvent(queue.EventPaymentRequested, pay, res, pay.RequestedAt))
	return pay, nil
}

// SettlePayment completes or fails a REQUESTED payment.  detail is the
// transaction reference on completion and the failure reason otherwise.
//
// Completion confirms a PENDING reservation.  Failure cancels a live
// reservation.  Either way the payment and reservation rows are written in
// the same transaction.
func (o *Orchestrator) SettlePayment(ctx context.Context, paymentID uint64, outcome model.SettleOutcome, detail string) (*Settlement, error) {
	switch outcome {
	case model.SettleComplete:
		return o.settle(ctx, paymentID, func(ctx context.Context, tx Tx, p *model.Payment, r *model.Reservation, now time.Time) (bool, error) {
			return completePayment(ctx, tx, p, r, detail, now)
		})
	case model.SettleFail:
		return o.settle(ctx, paymentID, func(_ context.Context, _ Tx, p *model.Payment, r *model.Reservation, now time.Time) (bool, error) {
			return failPayment(p, r, detail, now)
		})
	default:
		return nil, fmt.Errorf("%w: unknown settle outcome %q", ErrInvalidInput, outcome)
	}
}

// RefundPayment refunds a COMPLETED payment and cancels its reservation if
// it still holds the slot.
func (o *Orchestrator) RefundPayment(ctx context.Context, paymentID uint64) (*Settlement, error) {
	return o.settle(ctx, paymentID, func(ctx context.Context, tx Tx, p *model.Payment, r *model.Reservation, now time.Time) (bool, error) {
		if err := Refund(p, now); err != nil {
			return false, err
		}
		if !r.Status.IsLive() {
			return false, nil
		}
		if err := Cancel(r, model.SystemActor, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// completePayment returns true because the reservation always records the
// completed payment.
func completePayment(ctx context.Context, tx Tx, p *model.Payment, r *model.Reservation, ref string, now time.Time) (bool, error) {
	if err := Complete(p, ref, now); err != nil {
		return false, err
	}
	if r.Status.IsTerminal() {
		return false, fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, r.ID, r.Status)
	}
	taken, err := tx.CompletedPaymentExists(ctx, r.ID, p.ID)
	if err != nil {
		return false, err
	}
	if taken {
		return false, fmt.Errorf("%w: reservation %d already has a completed payment", ErrConflict, r.ID)
	}
	if _, err := ConfirmBySystem(r, p.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// failPayment always releases a live reservation; RequestPayment keeps at
// most one open payment per reservation.
func failPayment(p *model.Payment, r *model.Reservation, reason string, now time.Time) (bool, error) {
	if err := Fail(p, reason, now); err != nil {
		return false, err
	}
	if !r.Status.IsLive() {
		return false, nil
	}
	if err := Cancel(r, model.SystemActor, now); err != nil {
		return false, err
	}
	return true, nil
}

// settle locks the payment and then its reservation, always in that order,
// applies fn and writes back whatever fn touched.  fn reports whether the
// reservation row must be written.
func (o *Orchestrator) settle(ctx context.Context, paymentID uint64, fn func(context.Context, Tx, *model.Payment, *model.Reservation, time.Time) (bool, error)) (*Settlement, error) {
	var out Settlement
	err := o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		r, err := tx.LockReservation(ctx, p.ReservationID)
		if err != nil {
			return err
		}
		before := r.Status
		dirty, err := fn(ctx, tx, p, r, o.stamp())
		if err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if dirty {
			if err := tx.UpdateReservation(ctx, r); err != nil {
				return err
			}
		}
		out = Settlement{Payment: p, Reservation: r, ReservationChanged: r.Status != before}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p, r := out.Payment, out.Reservation
	o.log.Info("payment settled",
		zap.Uint64("payment_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.Uint64("reservation_id", r.ID),
		zap.String("reservation_status", string(r.Status)))

	content, typ := paymentMessage(p)
	o.notify(ctx, p.GuestID, content, typ)
	o.publish(ctx, paymentEvent(paymentEventType(p.Status), p, r, o.now()))

	if out.ReservationChanged {
		o.invalidate(ctx, r.SpaceID)
		space := o.spaceOrNil(ctx, r.SpaceID)
		o.notifyGuestOfStatus(ctx, r, space, "")
		o.publish(ctx, reservationEvent(reservationEventType(r.Status), r, space))
	}
	return &out, nil
}

// CommentPosted fans a board comment out to the users who follow it.  It
// returns the receivers that were handed to the notifier.
func (o *Orchestrator) CommentPosted(ctx context.Context, ev CommentEvent) ([]uint64, error) {
	if ev.AuthorID == 0 || ev.PostID == 0 {
		return nil, fmt.Errorf("%w: comment event needs author and post", ErrInvalidInput)
	}
	var sent []uint64
	for _, rc := range commentRecipients(ev) {
		o.notify(ctx, rc.receiverID, rc.content, rc.typ)
		sent = append(sent, rc.receiverID)
	}
	return sent, nil
}

func (o *Orchestrator) notifyGuestOfStatus(ctx context.Context, r *model.Reservation, space *model.Space, reason string) {
	content, typ, err := statusNotification(r, space, reason)
	if err != nil {
		o.log.Error("build status notification", zap.Uint64("reservation_id", r.ID), zap.Error(err))
		return
	}
	o.notify(ctx, r.GuestID, content, typ)
}

// notify runs after commit on a context that outlives request cancellation.
// Failures are logged and dropped.
func (o *Orchestrator) notify(ctx context.Context, receiverID uint64, content string, typ model.NotificationType) {
	if _, err := o.notifier.Notify(context.WithoutCancel(ctx), receiverID, content, typ); err != nil {
		o.log.Warn("notification not delivered",
			zap.Uint64("receiver_id", receiverID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

// invalidate drops cached availability of spaceID after commit.  A failure
// leaves the cache stale until its TTL and is only logged.
func (o *Orchestrator) invalidate(ctx context.Context, spaceID uint64) {
	if o.slots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := o.slots.InvalidateSpace(ctx, spaceID); err != nil {
		o.log.Warn("slot cache not invalidated", zap.Uint64("space_id", spaceID), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev queue.BookingEvent) {
	if err := o.events.PublishBookingEvent(context.WithoutCancel(ctx), ev); err != nil {
		o.log.Warn("booking event not published",
			zap.String("type", ev.Type),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err))
	}
}

// stamp is the current time at the one-second precision of stored rows.
func (o *Orchestrator) stamp() time.Time {
	return o.now().UTC().Truncate(time.Second)
}

func (o *Orchestrator) spaceOrNil(ctx context.Context, id uint64) *model.Space {
	space, err := o.dir.Space(ctx, id)
	if err != nil {
		o.log.Debug("space lookup for notification failed", zap.Uint64("space_id", id), zap.Error(err))
		return nil
	}
	return space
}

func reservationEvent(typ string, r *model.Reservation, space *model.Space) queue.BookingEvent {
	ev := queue.BookingEvent{
		Type:          typ,
		ReservationID: r.ID,
		SpaceID:       r.SpaceID,
		GuestID:       r.GuestID,
		Status:        string(r.Status),
		PaymentID:     r.PaymentID,
		StartsAt:      r.StartTime.UTC().Format(time.RFC3339),
		EndsAt:        r.EndTime.UTC().Format(time.RFC3339),
		OccurredAt:    r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if space != nil {
		ev.HostID = space.HostID
	}
	return ev
}

func paymentEvent(typ string, p *model.Payment, r *model.Reservation, at time.Time) queue.BookingEvent {
	ev := reservationEvent(typ, r, nil)
	id := p.ID
	ev.PaymentID = &id
	ev.PaymentStatus = string(p.Status)
	ev.AmountCents = p.AmountCents
	ev.Currency = p.Currency
	ev.OccurredAt = at.UTC().Format(time.RFC3339)
	return ev
}

func paymentEventType(s model.PaymentStatus) string {
	switch s {
	case model.PaymentCompleted:
		return queue.EventPaymentCompleted
	case model.PaymentFailed:
		return queue.EventPaymentFailed
	case model.PaymentRefunded:
		return queue.EventPaymentRefunded
	default:
		return queue.EventPaymentRequested
	}
}

func reservationEventType(s model.ReservationStatus) string {
	switch s {
	case model.ReservationConfirmed:
		return queue.EventReservationConfirmed
	case model.ReservationRejected:
		return queue.EventReservationRejected
	case model.ReservationCancelled:
		return queue.EventReservationCancelled
	default:
		return queue.EventReservationCreated
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, uint64, string, model.NotificationType) (*model.Notification, error) {
	return nil, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishBookingEvent(context.Context, queue.BookingEvent) error { return nil }
