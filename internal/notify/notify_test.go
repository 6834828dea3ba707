package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/model"
)

type mockPrefs struct{ mock.Mock }

func (m *mockPrefs) NotificationsEnabled(ctx context.Context, userID uint64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Create(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	if args.Error(0) == nil {
		n.ID = 42
	}
	return args.Error(0)
}

type mockPusher struct{ mock.Mock }

func (m *mockPusher) Push(ctx context.Context, receiverID uint64, payload model.NotificationPayload) error {
	args := m.Called(ctx, receiverID, payload)
	return args.Error(0)
}

func TestNotifyPersistsAndPushes(t *testing.T) {
	prefs, repo, pusher := &mockPrefs{}, &mockRepo{}, &mockPusher{}
	prefs.On("NotificationsEnabled", mock.Anything, uint64(7)).Return(true, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Notification")).Return(nil)
	pusher.On("Push", mock.Anything, uint64(7), mock.MatchedBy(func(p model.NotificationPayload) bool {
		return p.ID == 42 && p.Type == model.NotifReservationConfirmed && !p.IsRead
	})).Return(nil)

	d := NewDispatcher(prefs, repo, pusher, zap.NewNop())
	n, err := d.Notify(context.Background(), 7, "confirmed", model.NotifReservationConfirmed)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, uint64(42), n.ID)
	assert.Equal(t, "confirmed", n.Content)
	assert.Equal(t, time.UTC, n.CreatedAt.Location())

	prefs.AssertExpectations(t)
	repo.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestNotifySkipsDisabledReceivers(t *testing.T) {
	prefs, repo, pusher := &mockPrefs{}, &mockRepo{}, &mockPusher{}
	prefs.On("NotificationsEnabled", mock.Anything, uint64(7)).Return(false, nil)

	n, err := NewDispatcher(prefs, repo, pusher, nil).Notify(context.Background(), 7, "x", model.NotifPaymentFailed)
	require.NoError(t, err)
	assert.Nil(t, n)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyKeepsNotificationWhenPushFails(t *testing.T) {
	prefs, repo, pusher := &mockPrefs{}, &mockRepo{}, &mockPusher{}
	prefs.On("NotificationsEnabled", mock.Anything, uint64(7)).Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pusher.On("Push", mock.Anything, uint64(7), mock.Anything).Return(errors.New("redis down"))

	n, err := NewDispatcher(prefs, repo, pusher, nil).Notify(context.Background(), 7, "x", model.NotifPaymentCompleted)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, uint64(42), n.ID)
}

func TestNotifyReportsStorageErrors(t *testing.T) {
	prefs, repo := &mockPrefs{}, &mockRepo{}
	prefs.On("NotificationsEnabled", mock.Anything, uint64(7)).Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := NewDispatcher(prefs, repo, nil, nil).Notify(context.Background(), 7, "x", model.NotifPaymentCompleted)
	assert.Error(t, err)

	prefs = &mockPrefs{}
	prefs.On("NotificationsEnabled", mock.Anything, uint64(8)).Return(false, errors.New("no such user"))
	_, err = NewDispatcher(prefs, repo, nil, nil).Notify(context.Background(), 8, "x", model.NotifPaymentCompleted)
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "notifications:15", Topic(15))
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisPubSubRoundTrip(t *testing.T) {
	ps := NewRedisPubSub(newRedis(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := make(chan struct{})
	received := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.Stream(ctx, 3, func() { close(ready) }, func(payload string) error {
			received <- payload
			return errors.New("stop")
		})
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		t.Fatal("subscription never became ready")
	}

	want := model.NotificationPayload{ID: 1, Content: "hello", Type: model.NotifCommentReply}
	require.NoError(t, ps.Push(ctx, 3, want))

	select {
	case raw := <-received:
		var got model.NotificationPayload
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Content, got.Content)
	case <-ctx.Done():
		t.Fatal("payload not delivered")
	}
	assert.EqualError(t, <-done, "stop")
}

func TestRedisPubSubStopsOnCancel(t *testing.T) {
	ps := NewRedisPubSub(newRedis(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ps.Stream(ctx, 3, cancel, func(string) error { return nil }) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestHandlePush(t *testing.T) {
	pusher := &mockPusher{}
	payload := model.NotificationPayload{ID: 5, Content: "x", Type: model.NotifPaymentRefunded}
	pusher.On("Push", mock.Anything, uint64(9), mock.MatchedBy(func(p model.NotificationPayload) bool {
		return p.ID == payload.ID && p.Type == payload.Type
	})).Return(nil).Once()
	w := &PushWorker{target: pusher, log: zap.NewNop()}

	task, err := NewPushTask(9, payload)
	require.NoError(t, err)
	assert.Equal(t, TypePushNotification, task.Type())
	require.NoError(t, w.HandlePush(context.Background(), task))
	pusher.AssertExpectations(t)

	err = w.HandlePush(context.Background(), asynq.NewTask(TypePushNotification, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePushRetriesDeliveryErrors(t *testing.T) {
	pusher := &mockPusher{}
	pusher.On("Push", mock.Anything, uint64(9), mock.Anything).Return(errors.New("redis down"))
	w := &PushWorker{target: pusher, log: zap.NewNop()}

	task, err := NewPushTask(9, model.NotificationPayload{ID: 5})
	require.NoError(t, err)
	err = w.HandlePush(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
