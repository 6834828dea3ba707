// Package notify persists notifications and pushes them to the receiver's
// real-time topic.  Persistence is synchronous; push is best effort.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/model"
)

// Preferences looks up whether a user accepts notifications.
type Preferences interface {
	NotificationsEnabled(ctx context.Context, userID uint64) (bool, error)
}

// Repository persists notification rows.
type Repository interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Pusher delivers a payload to one receiver's real-time topic.
type Pusher interface {
	Push(ctx context.Context, receiverID uint64, payload model.NotificationPayload) error
}

// Topic is the pub/sub channel of one receiver.
func Topic(receiverID uint64) string {
	return fmt.Sprintf("notifications:%d", receiverID)
}

// Dispatcher implements booking.Notifier.
type Dispatcher struct {
	prefs  Preferences
	repo   Repository
	pusher Pusher
	log    *zap.Logger
	now    func() time.Time
}

// NewDispatcher builds a Dispatcher.  pusher may be nil, in which case
// notifications are only persisted.
func NewDispatcher(prefs Preferences, repo Repository, pusher Pusher, log *zap.Logger) *Dispatcher {
	if prefs == nil || repo == nil {
		panic("notify: nil dependency passed to NewDispatcher")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{prefs: prefs, repo: repo, pusher: pusher, log: log.Named("notify"), now: time.Now}
}

// Notify stores a notification for receiverID and pushes it.  When the
// receiver has notifications disabled nothing is stored or pushed and the
// returned notification is nil.  A push failure is logged and does not
// affect the result.
func (d *Dispatcher) Notify(ctx context.Context, receiverID uint64, content string, typ model.NotificationType) (*model.Notification, error) {
	enabled, err := d.prefs.NotificationsEnabled(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("notification preference for user %d: %w", receiverID, err)
	}
	if !enabled {
		d.log.Debug("notifications disabled; skipping", zap.Uint64("receiver_id", receiverID))
		return nil, nil
	}

	n := &model.Notification{
		ReceiverID: receiverID,
		Content:    content,
		Type:       typ,
		CreatedAt:  d.now().UTC().Truncate(time.Second),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	if d.pusher != nil {
		if err := d.pusher.Push(ctx, receiverID, n.Payload()); err != nil {
			d.log.Warn("push failed; notification kept",
				zap.Uint64("notification_id", n.ID),
				zap.Uint64("receiver_id", receiverID),
				zap.Error(err))
		}
	}
	return n, nil
}
