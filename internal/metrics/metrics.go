package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Booking rejection reasons recorded by RecordBookingRejected.
const (
	ReasonGroupFull     = "group_full"
	ReasonAlreadyBooked = "already_booked"
	ReasonNotFound      = "not_found"
)

type Metrics struct {
	Database *DatabaseMetrics
	Events   *EventMetrics
	Health   *HealthMetrics
	Runtime  *RuntimeMetrics
	GRPC     *GRPCMetrics

	bookingsCreated  metric.Int64Counter
	bookingsCanceled metric.Int64Counter
	bookingsRejected metric.Int64Counter
	usersRegistered  metric.Int64Counter
	studentsCreated  metric.Int64Counter
	capacityRejected metric.Int64Counter
}

func New(meter metric.Meter, logger *slog.Logger) (*Metrics, error) {
	m := &Metrics{}

	var err error

	if m.Database, err = NewDatabaseMetrics(meter); err != nil {
		return nil, err
	}
	if m.Events, err = NewEventMetrics(meter); err != nil {
		return nil, err
	}
	if m.Health, err = NewHealthMetrics(meter); err != nil {
		return nil, err
	}
	if m.Runtime, err = NewRuntimeMetrics(meter); err != nil {
		return nil, err
	}
	if m.GRPC, err = NewGRPCMetrics(meter); err != nil {
		return nil, err
	}

	m.bookingsCreated, err = meter.Int64Counter(
		"tutoring.bookings.created",
		metric.WithDescription("Total number of bookings created"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, err
	}

	m.bookingsCanceled, err = meter.Int64Counter(
		"tutoring.bookings.canceled",
		metric.WithDescription("Total number of bookings canceled"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, err
	}

	m.bookingsRejected, err = meter.Int64Counter(
		"tutoring.bookings.rejected",
		metric.WithDescription("Booking attempts rejected, by reason"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, err
	}

	m.usersRegistered, err = meter.Int64Counter(
		"tutoring.users.registered",
		metric.WithDescription("Total number of users registered"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsCreated, err = meter.Int64Counter(
		"tutoring.students.created",
		metric.WithDescription("Total number of student profiles created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.capacityRejected, err = meter.Int64Counter(
		"tutoring.groups.capacity_rejected",
		metric.WithDescription("Capacity updates rejected because bookings exceed the new capacity"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("metrics collectors initialized successfully")
	return m, nil
}

func (m *Metrics) RecordBookingCreated(ctx context.Context) {
	if m != nil && m.bookingsCreated != nil {
		m.bookingsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordBookingCanceled(ctx context.Context) {
	if m != nil && m.bookingsCanceled != nil {
		m.bookingsCanceled.Add(ctx, 1)
	}
}

func (m *Metrics) RecordBookingRejected(ctx context.Context, reason string) {
	if m != nil && m.bookingsRejected != nil {
		m.bookingsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m != nil && m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordCapacityRejected(ctx context.Context) {
	if m != nil && m.capacityRejected != nil {
		m.capacityRejected.Add(ctx, 1)
	}
}

// DB returns the database collector; safe on a nil receiver.
func (m *Metrics) DB() *DatabaseMetrics {
	if m == nil {
		return nil
	}
	return m.Database
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{
		Database: &DatabaseMetrics{},
		Events:   &EventMetrics{},
		Health:   &HealthMetrics{},
		GRPC:     &GRPCMetrics{},
	}
}
