// Package messaging publishes booking events to NATS.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
)

const (
	transport    = "nats"
	flushTimeout = 5 * time.Second
)

// Producer publishes each event to "<subject>.<event type>", for example
// tutoring.bookings.booking.created.
type Producer struct {
	conn    *nats.Conn
	subject string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewProducer(url, subject string, m *metrics.Metrics, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url,
		nats.Name("tutoring-booking-events"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return &Producer{
		conn:    nc,
		subject: subject,
		metrics: m,
		logger:  logger,
	}, nil
}

// Publish sends event and waits for the server to acknowledge the flush.
func (p *Producer) Publish(ctx context.Context, event booking.Event) error {
	start := time.Now()
	err := p.publish(ctx, event)
	p.metrics.Events.RecordPublish(ctx, transport, event.Type, time.Since(start), err)
	return err
}

func (p *Producer) publish(ctx context.Context, event booking.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(event.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.EventID)

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send event to NATS", "subject", msg.Subject, "error", err)
		return err
	}
	if err := p.flush(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}

	p.logger.DebugContext(ctx, "event sent to NATS", "subject", msg.Subject, "event_id", event.EventID)
	return nil
}

// Subject returns the subject an event type is published on.
func (p *Producer) Subject(eventType string) string {
	return p.subject + "." + eventType
}

// Ping reports whether the connection is usable.
func (p *Producer) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return p.flush(ctx)
}

// flush needs a deadline; contexts without one fall back to flushTimeout.
func (p *Producer) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return p.conn.FlushWithContext(ctx)
	}
	return p.conn.FlushTimeout(flushTimeout)
}

func (p *Producer) Close() error {
	return p.conn.Drain()
}
