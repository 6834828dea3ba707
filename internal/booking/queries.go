package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/spacebook/internal/model"
)

// MaxBusyWindow bounds the range a BusySlots call may cover.
const MaxBusyWindow = 93 * 24 * time.Hour

// GetReservation returns a reservation visible to actor: its guest, the
// host of its space, or the system.
func (o *Orchestrator) GetReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	r, err := o.store.Reservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	if actor.IsSystem() || actor.ID == r.GuestID {
		return r, nil
	}
	space, err := o.dir.Space(ctx, r.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("lookup space %d: %w", r.SpaceID, err)
	}
	if space.HostID != actor.ID {
		return nil, fmt.Errorf("%w: reservation %d", ErrUnauthorized, id)
	}
	return r, nil
}

// ListGuestReservations pages through a guest's reservations, newest first.
func (o *Orchestrator) ListGuestReservations(ctx context.Context, guestID uint64, limit, offset int) ([]model.Reservation, error) {
	limit, offset = clampPage(limit, offset)
	return o.store.ListReservationsByGuest(ctx, guestID, limit, offset)
}

// ListSpaceReservations pages through the reservations of a space.  Only
// the space's host may list them.
func (o *Orchestrator) ListSpaceReservations(ctx context.Context, hostID, spaceID uint64, limit, offset int) ([]model.Reservation, error) {
	space, err := o.dir.Space(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("lookup space %d: %w", spaceID, err)
	}
	if space.HostID != hostID {
		return nil, fmt.Errorf("%w: user %d does not host space %d", ErrUnauthorized, hostID, spaceID)
	}
	limit, offset = clampPage(limit, offset)
	return o.store.ListReservationsBySpace(ctx, spaceID, limit, offset)
}

// GetPayment returns a payment to the guest who made it or the system.
func (o *Orchestrator) GetPayment(ctx context.Context, actor model.Actor, id uint64) (*model.Payment, error) {
	p, err := o.store.Payment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load payment %d: %w", id, err)
	}
	if !actor.IsSystem() && actor.ID != p.GuestID {
		return nil, fmt.Errorf("%w: payment %d", ErrUnauthorized, id)
	}
	return p, nil
}

// BusySlots lists the live intervals of a space intersecting [from, to).
// The answer is advisory: only ReserveSpace decides availability.
func (o *Orchestrator) BusySlots(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Slot, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: 'to' must be after 'from'", ErrInvalidInput)
	}
	if to.Sub(from) > MaxBusyWindow {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, int(MaxBusyWindow.Hours()/24))
	}
	if _, err := o.dir.Space(ctx, spaceID); err != nil {
		return nil, fmt.Errorf("lookup space %d: %w", spaceID, err)
	}
	slots, err := o.store.LiveSlots(ctx, spaceID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return slots, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
