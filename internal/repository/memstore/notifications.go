package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

func (s *Store) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListByReceiver(_ context.Context, receiverID uint64, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	s.mu.Lock()
	var all []model.Notification
	for _, n := range s.notifications {
		if n.ReceiverID == receiverID && (!unreadOnly || !n.IsRead) {
			all = append(all, n)
		}
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, limit, offset), nil
}

func (s *Store) CountUnread(_ context.Context, receiverID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := 0
	for _, n := range s.notifications {
		if n.ReceiverID == receiverID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (s *Store) MarkRead(_ context.Context, receiverID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.ownedNotification(receiverID, id)
	if err != nil {
		return err
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, receiverID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c int64
	for id, n := range s.notifications {
		if n.ReceiverID == receiverID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			c++
		}
	}
	return c, nil
}

func (s *Store) Delete(_ context.Context, receiverID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedNotification(receiverID, id); err != nil {
		return err
	}
	delete(s.notifications, id)
	return nil
}

// ownedNotification requires s.mu.
func (s *Store) ownedNotification(receiverID, id uint64) (model.Notification, error) {
	n, ok := s.notifications[id]
	if !ok {
		return n, fmt.Errorf("%w: notification %d", booking.ErrNotFound, id)
	}
	if n.ReceiverID != receiverID {
		return n, fmt.Errorf("%w: notification %d", booking.ErrUnauthorized, id)
	}
	return n, nil
}
