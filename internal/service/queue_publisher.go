// Package service holds outbound integrations used by the booking core.
// Publishing never blocks the request path: events are queued in memory
// and a background loop started by serve forwards them to the broker.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    q "github.com/iliyamo/spacebook/internal/queue"
)

// DefaultBuffer is the number of events held while the broker is slow.
const DefaultBuffer = 256

// ErrPublishBufferFull is returned when an event is dropped because the
// in-memory buffer is full.
var ErrPublishBufferFull = errors.New("booking event buffer full")

// BookingPublisher publishes BookingEvents to the durable booking.events
// queue.  PublishBookingEvent only enqueues; Run owns the connection,
// opening it lazily and reopening it after a failure.
type BookingPublisher struct {
    url     string
    log     *zap.Logger
    events  chan q.BookingEvent
    dial    func(url string) (*amqp.Connection, error)
    backoff time.Duration

    // owned by Run
    conn      *amqp.Connection
    ch        *amqp.Channel
    downUntil time.Time
}

// NewBookingPublisher returns a publisher for the broker at url buffering
// up to size events.  size <= 0 selects DefaultBuffer.
func NewBookingPublisher(url string, size int, log *zap.Logger) *BookingPublisher {
    if log == nil {
        log = zap.NewNop()
    }
    if size <= 0 {
        size = DefaultBuffer
    }
    return &BookingPublisher{
        url:     url,
        log:     log.Named("rabbitmq"),
        events:  make(chan q.BookingEvent, size),
        dial:    q.Dial,
        backoff: 5 * time.Second,
    }
}

// PublishBookingEvent implements booking.EventPublisher.  It never waits
// for the broker; when the buffer is full the event is dropped and logged.
func (p *BookingPublisher) PublishBookingEvent(_ context.Context, event q.BookingEvent) error {
    select {
    case p.events <- event:
        return nil
    default:
        p.log.Warn("booking event dropped",
            zap.String("type", event.Type),
            zap.Uint64("reservation_id", event.ReservationID),
            zap.Int("buffer", cap(p.events)))
        return ErrPublishBufferFull
    }
}

// Run forwards buffered events until ctx is cancelled.  While the broker
// is unreachable events are dropped rather than retried, so one outage
// cannot back the buffer up into the request path.
func (p *BookingPublisher) Run(ctx context.Context) error {
    defer p.reset()
    for {
        select {
        case <-ctx.Done():
            return nil
        case ev := <-p.events:
            if err := p.send(ctx, ev); err != nil {
                p.log.Warn("publish failed",
                    zap.String("type", ev.Type),
                    zap.Uint64("reservation_id", ev.ReservationID),
                    zap.Error(err))
            }
        }
    }
}

func (p *BookingPublisher) send(ctx context.Context, event q.BookingEvent) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal: %w", err)
    }
    ch, err := p.channel()
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Type:         event.Type,
        Body:         body,
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := ch.PublishWithContext(ctx,
        "",                   // default exchange
        q.BookingEventsQueue, // routing key = queue name
        false,                // mandatory
        false,                // immediate
        pub,
    ); err != nil {
        p.reset()
        return err
    }
    return nil
}

func (p *BookingPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    if time.Now().Before(p.downUntil) {
        return nil, errors.New("broker unavailable")
    }
    conn, err := p.dial(p.url)
    if err != nil {
        p.downUntil = time.Now().Add(p.backoff)
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(
        q.BookingEventsQueue, // name
        true,                 // durable
        false,                // autoDelete
        false,                // exclusive
        false,                // noWait
        nil,                  // args
    ); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *BookingPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

// Pending reports how many events wait in the buffer.
func (p *BookingPublisher) Pending() int { return len(p.events) }
