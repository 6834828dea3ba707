package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/model"
)

// TypePushNotification is the asynq task type for real-time pushes.
const TypePushNotification = "notification:push"

type pushTask struct {
	ReceiverID uint64                    `json:"receiverId"`
	Payload    model.NotificationPayload `json:"payload"`
}

// QueuePusher hands pushes to an asynq queue so that a slow or absent
// pub/sub backend never blocks the caller.  Delivery happens in PushWorker.
type QueuePusher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewQueuePusher builds a QueuePusher.  queue defaults to "notifications".
func NewQueuePusher(client *asynq.Client, queue string, maxRetry int) *QueuePusher {
	if queue == "" {
		queue = "notifications"
	}
	return &QueuePusher{client: client, queue: queue, maxRetry: maxRetry}
}

// NewPushTask encodes a push as an asynq task.
func NewPushTask(receiverID uint64, payload model.NotificationPayload) (*asynq.Task, error) {
	b, err := json.Marshal(pushTask{ReceiverID: receiverID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePushNotification, b), nil
}

// Push enqueues the payload.  An unreachable queue is reported to the
// caller, which logs and drops it.
func (q *QueuePusher) Push(ctx context.Context, receiverID uint64, payload model.NotificationPayload) error {
	task, err := NewPushTask(receiverID, payload)
	if err != nil {
		return fmt.Errorf("encode push task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue push: %w", err)
	}
	return nil
}

// PushWorker consumes push tasks and forwards them to a Pusher, normally
// RedisPubSub.
type PushWorker struct {
	srv    *asynq.Server
	target Pusher
	log    *zap.Logger
}

// NewPushWorker builds the asynq server for the push queue.
func NewPushWorker(opt asynq.RedisClientOpt, queue string, concurrency int, target Pusher, log *zap.Logger) *PushWorker {
	if queue == "" {
		queue = "notifications"
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	return &PushWorker{srv: srv, target: target, log: log.Named("push-worker")}
}

// HandlePush is the asynq handler for TypePushNotification.  Malformed
// payloads are not retried.
func (w *PushWorker) HandlePush(ctx context.Context, t *asynq.Task) error {
	var p pushTask
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error("invalid push payload", zap.Error(err))
		return fmt.Errorf("decode push task: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.target.Push(ctx, p.ReceiverID, p.Payload); err != nil {
		w.log.Warn("push delivery failed",
			zap.Uint64("receiver_id", p.ReceiverID),
			zap.Uint64("notification_id", p.Payload.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// Run processes tasks until ctx is cancelled.
func (w *PushWorker) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePushNotification, w.HandlePush)
	if err := w.srv.Start(mux); err != nil {
		return fmt.Errorf("start push worker: %w", err)
	}
	w.log.Info("push worker started")
	<-ctx.Done()
	w.srv.Shutdown()
	return nil
}
