package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"venuebook/internal/metrics"
)

const (
	DefaultForwardBuffer = 256
	defaultDialTimeout   = 2 * time.Second
	publishTimeout       = 5 * time.Second
)

// ErrForwarderBusy is returned by Handle when the outbound buffer is full.
var ErrForwarderBusy = errors.New("amqp forwarder buffer is full")

// publisher is the part of *amqp.Channel the forwarder uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder copies bus events to a durable queue. Handle only enqueues;
// Run drains the buffer, opening the connection on first use and re-opening
// it after a failed publish.
type AMQPForwarder struct {
	url         string
	queue       string
	dialTimeout time.Duration
	buffer      chan Event
	logger      zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   publisher
	dial func(ctx context.Context) (publisher, error)
}

// NewAMQPForwarder buffers up to bufferSize events; a non-positive size uses DefaultForwardBuffer.
func NewAMQPForwarder(url, queue string, bufferSize int, logger *zerolog.Logger) *AMQPForwarder {
	if bufferSize <= 0 {
		bufferSize = DefaultForwardBuffer
	}
	f := &AMQPForwarder{
		url:         url,
		queue:       queue,
		dialTimeout: defaultDialTimeout,
		buffer:      make(chan Event, bufferSize),
		logger:      logger.With().Str("component", "amqp").Str("queue", queue).Logger(),
	}
	f.dial = f.dialBroker
	return f
}

// Attach subscribes the forwarder to every reservation event on bus.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.Subscribe(f.Handle,
		TypeReservationCreated,
		TypeReservationCancelled,
		TypeReservationStatusChanged,
		TypeReservationPaymentChanged,
	)
}

// Handle queues event for delivery and never waits on the broker.
func (f *AMQPForwarder) Handle(_ context.Context, event Event) error {
	select {
	case f.buffer <- event:
		return nil
	default:
		metrics.IncEventPublished(event.Type, "dropped")
		f.logger.Warn().Str("event_id", event.ID).Str("event_type", event.Type).Msg("rabbitmq: buffer full, event dropped")
		return fmt.Errorf("event %s: %w", event.ID, ErrForwarderBusy)
	}
}

// Run delivers queued events until ctx is done.
func (f *AMQPForwarder) Run(ctx context.Context) {
	f.logger.Info().Msg("rabbitmq forwarder started")
	for {
		select {
		case <-ctx.Done():
			if n := len(f.buffer); n > 0 {
				f.logger.Warn().Int("pending", n).Msg("rabbitmq forwarder stopped with undelivered events")
			}
			return
		case event := <-f.buffer:
			if err := f.forward(ctx, event); err != nil {
				f.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("rabbitmq: event not delivered")
			}
		}
	}
}

// forward publishes one event, reconnecting once if the channel has gone bad.
func (f *AMQPForwarder) forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		metrics.IncEventPublished(event.Type, "error")
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if f.ch == nil {
			ch, err := f.dial(ctx)
			if err != nil {
				metrics.IncEventPublished(event.Type, "error")
				return err
			}
			f.ch = ch
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = f.ch.PublishWithContext(pubCtx, "", f.queue, false, false, msg)
		cancel()
		if err == nil {
			metrics.IncEventPublished(event.Type, "ok")
			f.logger.Debug().Str("event_id", event.ID).Str("event_type", event.Type).Msg("event forwarded")
			return nil
		}
		f.logger.Warn().Err(err).Str("event_id", event.ID).Int("attempt", attempt+1).Msg("rabbitmq: publish failed")
		f.resetLocked()
	}
	metrics.IncEventPublished(event.Type, "error")
	return fmt.Errorf("publish %s: %w", event.ID, err)
}

func (f *AMQPForwarder) dialBroker(ctx context.Context) (publisher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(f.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(f.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(f.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	f.conn = conn
	return ch, nil
}

func (f *AMQPForwarder) resetLocked() {
	if f.ch != nil {
		_ = f.ch.Close()
		f.ch = nil
	}
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

// Close releases the broker connection. Call it after Run has returned.
func (f *AMQPForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
	return nil
}
