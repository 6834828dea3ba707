package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

// memTx implements booking.Tx.  Staged rows shadow committed ones until
// commit copies them into the store.
type memTx struct {
	s            *Store
	held         map[string]*sync.Mutex
	order        []string
	reservations map[uint64]model.Reservation
	payments     map[uint64]model.Payment
}

func (t *memTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.s.lockFor(key)
	m.Lock()
	t.held[key] = m
	t.order = append(t.order, key)
}

func (t *memTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.held[t.order[i]].Unlock()
	}
	t.held = map[string]*sync.Mutex{}
	t.order = nil
}

// reservationView merges committed and staged reservations.  Callers hold s.mu.
func (t *memTx) reservationView() map[uint64]model.Reservation {
	view := make(map[uint64]model.Reservation, len(t.s.reservations)+len(t.reservations))
	for id, r := range t.s.reservations {
		view[id] = r
	}
	for id, r := range t.reservations {
		view[id] = r
	}
	return view
}

// paymentView merges committed and staged payments.  Callers hold s.mu.
func (t *memTx) paymentView() map[uint64]model.Payment {
	view := make(map[uint64]model.Payment, len(t.s.payments)+len(t.payments))
	for id, p := range t.s.payments {
		view[id] = p
	}
	for id, p := range t.payments {
		view[id] = p
	}
	return view
}

func (t *memTx) CountOverlapping(_ context.Context, spaceID uint64, slot model.Slot, excludeID uint64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for id, r := range t.reservationView() {
		if id != excludeID && r.SpaceID == spaceID && r.Status.IsLive() && r.Slot().Overlaps(slot) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockSpace(_ context.Context, spaceID uint64) error {
	t.s.mu.Lock()
	_, ok := t.s.spaces[spaceID]
	t.s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: space %d", booking.ErrNotFound, spaceID)
	}
	t.lock(fmt.Sprintf("space:%d", spaceID))
	return nil
}

func (t *memTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	t.s.mu.Lock()
	r.ID = t.s.id()
	t.s.mu.Unlock()
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) LockReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	t.lock(fmt.Sprintf("reservation:%d", id))
	if r, ok := t.reservations[id]; ok {
		return &r, nil
	}
	t.s.mu.Lock()
	r, ok := t.s.reservations[id]
	t.s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return &r, nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		t.s.mu.Lock()
		_, ok = t.s.reservations[r.ID]
		t.s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, r.ID)
		}
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *model.Payment) error {
	t.s.mu.Lock()
	p.ID = t.s.id()
	t.s.mu.Unlock()
	t.payments[p.ID] = *p
	return nil
}

func (t *memTx) LockPayment(_ context.Context, id uint64) (*model.Payment, error) {
	t.lock(fmt.Sprintf("payment:%d", id))
	if p, ok := t.payments[id]; ok {
		return &p, nil
	}
	t.s.mu.Lock()
	p, ok := t.s.payments[id]
	t.s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	return &p, nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *model.Payment) error {
	if _, ok := t.payments[p.ID]; !ok {
		t.s.mu.Lock()
		_, ok = t.s.payments[p.ID]
		t.s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: payment %d", booking.ErrNotFound, p.ID)
		}
	}
	t.payments[p.ID] = *p
	return nil
}

func (t *memTx) CountLivePayments(_ context.Context, reservationID, excludeID uint64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for id, p := range t.paymentView() {
		if id != excludeID && p.ReservationID == reservationID && p.Status.IsLive() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CompletedPaymentExists(_ context.Context, reservationID, excludeID uint64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, p := range t.paymentView() {
		if id != excludeID && p.ReservationID == reservationID && p.Status == model.PaymentCompleted {
			return true, nil
		}
	}
	return false, nil
}

// commit enforces the same unique keys as the MySQL schema: one live
// reservation per (space, start, end) and one COMPLETED payment per
// reservation.
func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	resView := t.reservationView()
	for id, r := range t.reservations {
		if !r.Status.IsLive() {
			continue
		}
		for otherID, o := range resView {
			if otherID != id && o.SpaceID == r.SpaceID && o.Status.IsLive() &&
				o.StartTime.Equal(r.StartTime) && o.EndTime.Equal(r.EndTime) {
				return fmt.Errorf("%w: duplicate live slot for space %d", booking.ErrConflict, r.SpaceID)
			}
		}
	}
	payView := t.paymentView()
	for id, p := range t.payments {
		if p.Status != model.PaymentCompleted {
			continue
		}
		for otherID, o := range payView {
			if otherID != id && o.ReservationID == p.ReservationID && o.Status == model.PaymentCompleted {
				return fmt.Errorf("%w: reservation %d already has a completed payment", booking.ErrConflict, p.ReservationID)
			}
		}
	}

	for id, r := range t.reservations {
		t.s.reservations[id] = r
	}
	for id, p := range t.payments {
		t.s.payments[id] = p
	}
	return nil
}
