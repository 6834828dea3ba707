package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/spacebook/internal/model"
)

// RedisPubSub publishes payloads on Redis pub/sub and streams them back to
// subscribers such as the SSE endpoint.
type RedisPubSub struct {
	rdb *redis.Client
}

// NewRedisPubSub wraps an existing client.
func NewRedisPubSub(rdb *redis.Client) *RedisPubSub { return &RedisPubSub{rdb: rdb} }

// Push publishes payload as JSON on the receiver's topic.  Having no
// subscriber is not an error.
func (p *RedisPubSub) Push(ctx context.Context, receiverID uint64, payload model.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.rdb.Publish(ctx, Topic(receiverID), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", Topic(receiverID), err)
	}
	return nil
}

// Stream subscribes to the receiver's topic and calls fn with each raw
// JSON payload until ctx is cancelled or fn returns an error.  ready, if
// non-nil, is called once the subscription is active.
func (p *RedisPubSub) Stream(ctx context.Context, receiverID uint64, ready func(), fn func(payload string) error) error {
	ps := p.rdb.Subscribe(ctx, Topic(receiverID))
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic(receiverID), err)
	}
	if ready != nil {
		ready()
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := fn(msg.Payload); err != nil {
				return err
			}
		}
	}
}
