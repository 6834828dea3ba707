package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

var start = time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC)

func reservation(spaceID uint64, from time.Time, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{SpaceID: spaceID, GuestID: 1, StartTime: from, EndTime: from.Add(time.Hour), Status: status}
}

func insert(t *testing.T, s *Store, r *model.Reservation) {
	t.Helper()
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.InsertReservation(ctx, r)
	}))
}

func TestInTxDiscardsWritesOnError(t *testing.T) {
	s := New()
	var id uint64
	err := s.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		r := reservation(1, start, model.ReservationPending)
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		id = r.ID
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	_, err = s.Reservation(context.Background(), id)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestStagedWritesVisibleInsideTx(t *testing.T) {
	s := New()
	err := s.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		if err := tx.InsertReservation(ctx, reservation(1, start, model.ReservationPending)); err != nil {
			return err
		}
		n, err := tx.CountOverlapping(ctx, 1, model.Slot{Start: start.Add(30 * time.Minute), End: start.Add(2 * time.Hour)}, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func TestCommitRejectsDuplicateLiveSlot(t *testing.T) {
	s := New()
	insert(t, s, reservation(1, start, model.ReservationPending))

	err := s.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.InsertReservation(ctx, reservation(1, start, model.ReservationPending))
	})
	assert.ErrorIs(t, err, booking.ErrConflict)

	insert(t, s, reservation(1, start, model.ReservationCancelled))
	insert(t, s, reservation(2, start, model.ReservationPending))
}

func TestCommitRejectsSecondCompletedPayment(t *testing.T) {
	s := New()
	ctx := context.Background()
	var first, second model.Payment
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		first = model.Payment{ReservationID: 5, Status: model.PaymentCompleted}
		second = model.Payment{ReservationID: 5, Status: model.PaymentRequested}
		if err := tx.InsertPayment(ctx, &first); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &second)
	}))

	err := s.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		p, err := tx.LockPayment(ctx, second.ID)
		if err != nil {
			return err
		}
		p.Status = model.PaymentCompleted
		return tx.UpdatePayment(ctx, p)
	})
	assert.ErrorIs(t, err, booking.ErrConflict)

	stored, err := s.Payment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRequested, stored.Status)
}

func TestLockMissingRows(t *testing.T) {
	s := New()
	err := s.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		if err := tx.LockSpace(ctx, 9); !errors.Is(err, booking.ErrNotFound) {
			t.Errorf("LockSpace: got %v", err)
		}
		if _, err := tx.LockReservation(ctx, 9); !errors.Is(err, booking.ErrNotFound) {
			t.Errorf("LockReservation: got %v", err)
		}
		return tx.UpdatePayment(ctx, &model.Payment{ID: 9})
	})
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestListingsAndLiveSlots(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, reservation(1, start, model.ReservationPending))
	insert(t, s, reservation(1, start.Add(2*time.Hour), model.ReservationConfirmed))
	insert(t, s, reservation(1, start.Add(4*time.Hour), model.ReservationRejected))
	insert(t, s, reservation(2, start, model.ReservationPending))

	all, err := s.ListReservationsBySpace(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartTime.After(all[1].StartTime), "newest slot first")

	paged, err := s.ListReservationsBySpace(ctx, 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, all[1].ID, paged[0].ID)

	none, err := s.ListReservationsByGuest(ctx, 1, 10, 50)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	slots, err := s.LiveSlots(ctx, 1, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, start, slots[0].Start)

	slots, err = s.LiveSlots(ctx, 1, start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, slots, "window touching both ends of a slot does not intersect it")
}

func TestNotificationInbox(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i, typ := range []model.NotificationType{model.NotifCommentReply, model.NotifPaymentFailed, model.NotifCommentOnPost} {
		n := &model.Notification{ReceiverID: 7, Content: "n", Type: typ, CreatedAt: start.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Create(ctx, n))
	}
	other := &model.Notification{ReceiverID: 8, Content: "other", Type: model.NotifCommentReply, CreatedAt: start}
	require.NoError(t, s.Create(ctx, other))

	items, err := s.ListByReceiver(ctx, 7, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, model.NotifCommentOnPost, items[0].Type)

	require.NoError(t, s.MarkRead(ctx, 7, items[0].ID))
	assert.ErrorIs(t, s.MarkRead(ctx, 7, other.ID), booking.ErrUnauthorized)

	unread, err := s.CountUnread(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	changed, err := s.MarkAllRead(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	items, err = s.ListByReceiver(ctx, 7, true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Delete(ctx, 7, firstNotificationID(t, s)))
	assert.ErrorIs(t, s.Delete(ctx, 7, 999), booking.ErrNotFound)
}

func firstNotificationID(t *testing.T, s *Store) uint64 {
	t.Helper()
	items, err := s.ListByReceiver(context.Background(), 7, false, 1, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0].ID
}
