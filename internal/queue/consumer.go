package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer reads one durable queue and hands each delivery to handle.  A
// delivery whose handler fails is rejected without requeue so that a
// poison message cannot spin the loop.
type Consumer struct {
    url    string
    queue  string
    handle func(ctx context.Context, body []byte) error
    log    *zap.Logger
}

// CommentHandler receives decoded board comment events.
type CommentHandler func(ctx context.Context, ev CommentPostedEvent) error

// NewCommentConsumer consumes board.comments and passes each event to h.
func NewCommentConsumer(url string, h CommentHandler, log *zap.Logger) *Consumer {
    return newConsumer(url, BoardCommentsQueue, func(ctx context.Context, body []byte) error {
        return HandleCommentMessage(ctx, body, h)
    }, log)
}

// NewAuditConsumer consumes booking.events and appends one line per event
// to the file at path.
func NewAuditConsumer(url, path string, log *zap.Logger) *Consumer {
    return newConsumer(url, BookingEventsQueue, func(_ context.Context, body []byte) error {
        return AppendAuditLine(path, body)
    }, log)
}

func newConsumer(url, queue string, handle func(context.Context, []byte) error, log *zap.Logger) *Consumer {
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{url: url, queue: queue, handle: handle, log: log.Named("consumer").With(zap.String("queue", queue))}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Connection failures are retried with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return nil
        }
        conn, err := Dial(c.url)
        if err != nil {
            c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleepCtx(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
        if !sleepCtx(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set QoS failed", zap.Error(err))
    }

    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(ctx, d.Body); err != nil {
                c.log.Error("handle message failed", zap.Error(err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleCommentMessage decodes one board.comments delivery and calls h.
func HandleCommentMessage(ctx context.Context, body []byte, h CommentHandler) error {
    var ev CommentPostedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.AuthorID == 0 || ev.PostID == 0 {
        return errors.New("comment event missing author_id or post_id")
    }
    return h(ctx, ev)
}

// AppendAuditLine writes a single human-friendly line for a BookingEvent.
func AppendAuditLine(path string, body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] %s | reservation_id=%d | space_id=%d | guest_id=%d | status=%s | slot=%s..%s",
        ev.OccurredAt, ev.Type, ev.ReservationID, ev.SpaceID, ev.GuestID, ev.Status, ev.StartsAt, ev.EndsAt)
    if ev.PaymentID != nil {
        line += fmt.Sprintf(" | payment_id=%d | payment_status=%s | amount=%d %s", *ev.PaymentID, ev.PaymentStatus, ev.AmountCents, ev.Currency)
    }
    if _, err := f.WriteString(line + "\n"); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

// DialTimeout bounds the TCP connect and the AMQP handshake.  A broker that
// accepts connections but never speaks AMQP fails within this window.
const DialTimeout = 2 * time.Second

// Dial opens a broker connection with DialTimeout applied.
func Dial(url string) (*amqp.Connection, error) {
    return amqp.DialConfig(url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(DialTimeout),
    })
}
