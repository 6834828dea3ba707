package booking

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/spacebook/internal/model"
)

var t0 = time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

func pending(t *testing.T) *model.Reservation {
	t.Helper()
	r, err := NewReservation(7, 1, model.Slot{Start: t0, End: t0.Add(time.Hour)}, t0)
	require.NoError(t, err)
	r.ID = 100
	return r
}

func TestNewReservationRejectsEmptySlot(t *testing.T) {
	_, err := NewReservation(7, 1, model.Slot{Start: t0, End: t0}, t0)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = NewReservation(7, 1, model.Slot{Start: t0, End: t0.Add(-time.Minute)}, t0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmAndReject(t *testing.T) {
	space := &model.Space{ID: 7, HostID: 2}

	r := pending(t)
	require.NoError(t, Confirm(r, space, 2, t0))
	assert.Equal(t, model.ReservationConfirmed, r.Status)
	assert.ErrorIs(t, Confirm(r, space, 2, t0), ErrInvalidState)
	assert.ErrorIs(t, Reject(r, space, 2, t0), ErrInvalidState)

	r = pending(t)
	require.NoError(t, Reject(r, space, 2, t0))
	assert.Equal(t, model.ReservationRejected, r.Status)
	assert.ErrorIs(t, Cancel(r, model.Actor{ID: 1, Role: model.RoleGuest}, t0), ErrInvalidState)
}

func TestHostChecksRunBeforeStateChecks(t *testing.T) {
	r := pending(t)
	err := Confirm(r, &model.Space{ID: 7, HostID: 2}, 99, t0)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, model.ReservationPending, r.Status)

	err = Reject(r, &model.Space{ID: 8, HostID: 2}, 2, t0)
	assert.ErrorIs(t, err, ErrNotFound)

	err = Confirm(r, nil, 2, t0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.ReservationPending, r.Status)
}

func TestCancel(t *testing.T) {
	r := pending(t)
	assert.ErrorIs(t, Cancel(r, model.Actor{ID: 5, Role: model.RoleGuest}, t0), ErrUnauthorized)

	require.NoError(t, Cancel(r, model.Actor{ID: 1, Role: model.RoleGuest}, t0.Add(time.Minute)))
	assert.Equal(t, model.ReservationCancelled, r.Status)
	assert.Equal(t, t0.Add(time.Minute), r.UpdatedAt)

	r = pending(t)
	r.Status = model.ReservationConfirmed
	require.NoError(t, Cancel(r, model.SystemActor, t0))
	assert.Equal(t, model.ReservationCancelled, r.Status)
	assert.ErrorIs(t, Cancel(r, model.SystemActor, t0), ErrInvalidState)
}

func TestConfirmBySystem(t *testing.T) {
	r := pending(t)
	later := t0.Add(time.Minute)

	_, err := ConfirmBySystem(r, 0, later)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, r.PaymentID)

	changed, err := ConfirmBySystem(r, 5, later)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, r.PaymentID)
	assert.Equal(t, uint64(5), *r.PaymentID)
	assert.Equal(t, later, r.UpdatedAt)

	changed, err = ConfirmBySystem(r, 5, later)
	require.NoError(t, err)
	assert.False(t, changed)

	r.Status = model.ReservationCancelled
	_, err = ConfirmBySystem(r, 6, later)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, uint64(5), *r.PaymentID)
}

func TestNewReservationStoresWholeSeconds(t *testing.T) {
	from := t0.Add(750 * time.Millisecond).In(time.FixedZone("CEST", 2*60*60))
	r, err := NewReservation(7, 1, model.Slot{Start: from, End: from.Add(time.Hour)}, t0.Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, t0, r.StartTime)
	assert.Equal(t, t0.Add(time.Hour), r.EndTime)
	assert.Equal(t, t0.Add(time.Second), r.CreatedAt)
	assert.Equal(t, time.UTC, r.StartTime.Location())

	_, err = NewReservation(7, 1, model.Slot{Start: t0.Add(100 * time.Millisecond), End: t0.Add(900 * time.Millisecond)}, t0)
	assert.ErrorIs(t, err, ErrInvalidState, "sub-second slot collapses to empty")
}

func TestPaymentTransitions(t *testing.T) {
	r := pending(t)

	_, err := NewPayment(r, 1, 0, "", "card", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewPayment(r, 1, 100, "", "  ", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := NewPayment(r, 1, 2500, "eur", "card", t0)
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, model.PaymentRequested, p.Status)
	assert.Equal(t, r.ID, p.ReservationID)

	assert.ErrorIs(t, Refund(p, t0), ErrInvalidState)
	assert.ErrorIs(t, Complete(p, " ", t0), ErrInvalidInput)
	assert.Equal(t, model.PaymentRequested, p.Status)

	require.NoError(t, Complete(p, "tx-1", t0))
	assert.Equal(t, model.PaymentCompleted, p.Status)
	require.NotNil(t, p.TransactionRef)
	assert.Equal(t, "tx-1", *p.TransactionRef)
	assert.ErrorIs(t, Complete(p, "tx-2", t0), ErrInvalidState)
	assert.ErrorIs(t, Fail(p, "late", t0), ErrInvalidState)

	require.NoError(t, Refund(p, t0))
	assert.Equal(t, model.PaymentRefunded, p.Status)
	assert.ErrorIs(t, Refund(p, t0), ErrInvalidState)
}

func TestFailRecordsReason(t *testing.T) {
	p, err := NewPayment(pending(t), 1, 100, "", "card", t0)
	require.NoError(t, err)
	require.NoError(t, Fail(p, " card declined ", t0))
	assert.Equal(t, model.PaymentFailed, p.Status)
	require.NotNil(t, p.FailureReason)
	assert.Equal(t, "card declined", *p.FailureReason)
	require.NotNil(t, p.FailedAt)
}

func TestEveryReservationStatusHasWording(t *testing.T) {
	seen := map[model.NotificationType]bool{}
	for _, s := range model.ReservationStatuses {
		r := pending(t)
		r.Status = s
		content, typ, err := statusNotification(r, &model.Space{ID: 7, Title: "Loft"}, "")
		require.NoError(t, err, "status %s", s)
		assert.NotEmpty(t, content)
		assert.Contains(t, content, `"Loft"`)
		assert.False(t, seen[typ], "type %s reused", typ)
		seen[typ] = true
	}

	r := pending(t)
	r.Status = "ARCHIVED"
	_, _, err := statusNotification(r, nil, "")
	assert.Error(t, err)
}

func TestRejectionWordingCarriesReason(t *testing.T) {
	r := pending(t)
	r.Status = model.ReservationRejected
	content, typ, err := statusNotification(r, nil, "double booked")
	require.NoError(t, err)
	assert.Equal(t, model.NotifReservationRejected, typ)
	assert.Contains(t, content, "space #7")
	assert.True(t, strings.HasSuffix(content, "Reason: double booked"))
}

func TestPaymentMessage(t *testing.T) {
	p := &model.Payment{ReservationID: 100, AmountCents: 12345, Currency: "USD", Status: model.PaymentCompleted}
	content, typ := paymentMessage(p)
	assert.Equal(t, model.NotifPaymentCompleted, typ)
	assert.Contains(t, content, "123.45 USD")

	reason := "insufficient funds"
	p.Status, p.FailureReason = model.PaymentFailed, &reason
	content, typ = paymentMessage(p)
	assert.Equal(t, model.NotifPaymentFailed, typ)
	assert.Contains(t, content, reason)
}

func uptr(v uint64) *uint64 { return &v }

func TestCommentRecipients(t *testing.T) {
	tests := []struct {
		name string
		ev   CommentEvent
		want map[uint64]model.NotificationType
	}{
		{
			name: "top-level comment notifies post host",
			ev:   CommentEvent{AuthorID: 1, PostID: 9, PostHostID: 2},
			want: map[uint64]model.NotificationType{2: model.NotifCommentOnPost},
		},
		{
			name: "host commenting on own post notifies nobody",
			ev:   CommentEvent{AuthorID: 2, PostID: 9, PostHostID: 2},
			want: map[uint64]model.NotificationType{},
		},
		{
			name: "reply notifies parent author, host and guest participant",
			ev: CommentEvent{AuthorID: 3, PostID: 9, PostHostID: 2, IsReply: true,
				ParentAuthorID: uptr(4), GuestParticipantID: uptr(5)},
			want: map[uint64]model.NotificationType{
				4: model.NotifCommentReply,
				2: model.NotifCommentOnPost,
				5: model.NotifCommentReply,
			},
		},
		{
			name: "author replying to self is skipped",
			ev: CommentEvent{AuthorID: 4, PostID: 9, PostHostID: 2, IsReply: true,
				ParentAuthorID: uptr(4), GuestParticipantID: uptr(4)},
			want: map[uint64]model.NotificationType{2: model.NotifCommentOnPost},
		},
		{
			name: "guest participant only hears about replies",
			ev:   CommentEvent{AuthorID: 3, PostID: 9, GuestParticipantID: uptr(5)},
			want: map[uint64]model.NotificationType{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[uint64]model.NotificationType{}
			for _, rc := range commentRecipients(tt.ev) {
				got[rc.receiverID] = rc.typ
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommentExcerptIsTruncatedByRune(t *testing.T) {
	long := strings.Repeat("é", 120)
	rcs := commentRecipients(CommentEvent{AuthorID: 1, PostID: 9, PostHostID: 2, Excerpt: long})
	require.Len(t, rcs, 1)
	assert.Contains(t, rcs[0].content, strings.Repeat("é", 77)+"...")
	assert.NotContains(t, rcs[0].content, strings.Repeat("é", 78))
}
