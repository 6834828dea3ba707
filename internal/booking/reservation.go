package booking

import (
	"fmt"
	"time"

	"github.com/iliyamo/spacebook/internal/model"
)

// The functions in this file are the only code that changes a
// reservation's status.  They validate the transition and the actor,
// mutate the record in memory and leave persistence to the caller's
// transaction.

// NewReservation builds a PENDING reservation.  The caller must have
// established, inside the same transaction, that the slot is free.  Times
// are kept at whole seconds, the precision of the reservations table.
func NewReservation(spaceID, guestID uint64, slot model.Slot, now time.Time) (*model.Reservation, error) {
	slot = StoredSlot(slot)
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidState)
	}
	now = now.UTC().Truncate(time.Second)
	return &model.Reservation{
		SpaceID:   spaceID,
		GuestID:   guestID,
		StartTime: slot.Start,
		EndTime:   slot.End,
		Status:    model.ReservationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StoredSlot returns slot in UTC truncated to whole seconds.
func StoredSlot(slot model.Slot) model.Slot {
	return model.Slot{Start: slot.Start.UTC().Truncate(time.Second), End: slot.End.UTC().Truncate(time.Second)}
}

// Confirm moves a PENDING reservation to CONFIRMED on behalf of the host
// that owns its space.
func Confirm(r *model.Reservation, space *model.Space, actorHostID uint64, now time.Time) error {
	if err := authorizeHost(r, space, actorHostID); err != nil {
		return err
	}
	if r.Status != model.ReservationPending {
		return invalidReservationState(r, "confirm")
	}
	r.Status = model.ReservationConfirmed
	r.UpdatedAt = now
	return nil
}

// ConfirmBySystem records paymentID as the reservation's settling payment
// and confirms it if still PENDING.  It reports whether the status changed.
// Terminal reservations cannot be confirmed.
func ConfirmBySystem(r *model.Reservation, paymentID uint64, now time.Time) (bool, error) {
	if paymentID == 0 {
		return false, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}
	changed := false
	switch r.Status {
	case model.ReservationConfirmed:
	case model.ReservationPending:
		r.Status = model.ReservationConfirmed
		changed = true
	default:
		return false, invalidReservationState(r, "confirm")
	}
	r.PaymentID = &paymentID
	r.UpdatedAt = now
	return changed, nil
}

// Reject moves a PENDING reservation to REJECTED on behalf of the host
// that owns its space.  The reason is advisory and only travels with the
// notification.
func Reject(r *model.Reservation, space *model.Space, actorHostID uint64, now time.Time) error {
	if err := authorizeHost(r, space, actorHostID); err != nil {
		return err
	}
	if r.Status != model.ReservationPending {
		return invalidReservationState(r, "reject")
	}
	r.Status = model.ReservationRejected
	r.UpdatedAt = now
	return nil
}

// Cancel moves a PENDING or CONFIRMED reservation to CANCELLED.  Only the
// guest who made it or a system actor may cancel.
func Cancel(r *model.Reservation, actor model.Actor, now time.Time) error {
	if !actor.IsSystem() && actor.ID != r.GuestID {
		return fmt.Errorf("%w: user %d cannot cancel reservation %d", ErrUnauthorized, actor.ID, r.ID)
	}
	if !r.Status.IsLive() {
		return invalidReservationState(r, "cancel")
	}
	r.Status = model.ReservationCancelled
	r.UpdatedAt = now
	return nil
}

func authorizeHost(r *model.Reservation, space *model.Space, actorHostID uint64) error {
	if space == nil || space.ID != r.SpaceID {
		return fmt.Errorf("%w: space %d", ErrNotFound, r.SpaceID)
	}
	if space.HostID != actorHostID {
		return fmt.Errorf("%w: user %d does not host space %d", ErrUnauthorized, actorHostID, space.ID)
	}
	return nil
}

func invalidReservationState(r *model.Reservation, action string) error {
	return fmt.Errorf("%w: cannot %s reservation %d in status %s", ErrInvalidState, action, r.ID, r.Status)
}
