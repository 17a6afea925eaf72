package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventCreated  = "booking.created"
	EventCanceled = "booking.canceled"
)

// Event describes a committed booking change.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id"`
	StudentID  int64     `json:"student_id"`
	GroupID    int64     `json:"group_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEvent(eventType string, b *Booking) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		BookingID:  b.ID,
		StudentID:  b.StudentID,
		GroupID:    b.GroupID,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher delivers booking events after the change has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
