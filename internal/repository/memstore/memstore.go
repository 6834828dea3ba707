// Package memstore is an in-memory implementation of the booking store,
// directory and notification repository.  It backs the test suites and the
// "memory" store driver used for local runs without MySQL.
//
// Transactions stage their writes and apply them on commit.  Row and space
// locks are real mutexes held until the transaction ends, so concurrent
// callers get the same serialization the MySQL store provides.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

// Store holds every table in maps guarded by mu.  locks serializes
// transactions per space, reservation or payment.
type Store struct {
	mu            sync.Mutex
	spaces        map[uint64]model.Space
	users         map[uint64]model.User
	reservations  map[uint64]model.Reservation
	payments      map[uint64]model.Payment
	notifications map[uint64]model.Notification
	nextID        uint64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{
		spaces:        map[uint64]model.Space{},
		users:         map[uint64]model.User{},
		reservations:  map[uint64]model.Reservation{},
		payments:      map[uint64]model.Payment{},
		notifications: map[uint64]model.Notification{},
		locks:         map[string]*sync.Mutex{},
	}
}

// PutSpace adds or replaces a space.
func (s *Store) PutSpace(sp model.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[sp.ID] = sp
}

// PutUser adds or replaces a user.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// InTx runs fn with staged writes.  The writes become visible atomically
// when fn returns nil and the commit-time constraint checks pass.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx := &memTx{
		s:            s,
		held:         map[string]*sync.Mutex{},
		reservations: map[uint64]model.Reservation{},
		payments:     map[uint64]model.Payment{},
	}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) Reservation(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return &r, nil
}

func (s *Store) Payment(_ context.Context, id uint64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	return &p, nil
}

func (s *Store) ListReservationsByGuest(_ context.Context, guestID uint64, limit, offset int) ([]model.Reservation, error) {
	return s.listReservations(func(r model.Reservation) bool { return r.GuestID == guestID }, limit, offset), nil
}

func (s *Store) ListReservationsBySpace(_ context.Context, spaceID uint64, limit, offset int) ([]model.Reservation, error) {
	return s.listReservations(func(r model.Reservation) bool { return r.SpaceID == spaceID }, limit, offset), nil
}

func (s *Store) listReservations(keep func(model.Reservation) bool, limit, offset int) []model.Reservation {
	s.mu.Lock()
	var all []model.Reservation
	for _, r := range s.reservations {
		if keep(r) {
			all = append(all, r)
		}
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartTime.Equal(all[j].StartTime) {
			return all[i].StartTime.After(all[j].StartTime)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, limit, offset)
}

func (s *Store) LiveSlots(_ context.Context, spaceID uint64, from, to time.Time) ([]model.Slot, error) {
	window := model.Slot{Start: from, End: to}
	s.mu.Lock()
	var out []model.Slot
	for _, r := range s.reservations {
		if r.SpaceID == spaceID && r.Status.IsLive() && r.Slot().Overlaps(window) {
			out = append(out, r.Slot())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Space implements booking.Directory.
func (s *Store) Space(_ context.Context, id uint64) (*model.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: space %d", booking.ErrNotFound, id)
	}
	return &sp, nil
}

// User implements booking.Directory.
func (s *Store) User(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", booking.ErrNotFound, id)
	}
	return &u, nil
}

// NotificationsEnabled implements notify.Preferences.
func (s *Store) NotificationsEnabled(ctx context.Context, userID uint64) (bool, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.NotificationsEnabled, nil
}

func page[T any](all []T, limit, offset int) []T {
	out := []T{}
	if offset >= len(all) {
		return out
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append(out, all[offset:end]...)
}
