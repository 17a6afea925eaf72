package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/group"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
)

var (
	ErrBookingNotFound = apperr.New(apperr.KindNotFound, "booking not found")
	ErrAlreadyBooked   = apperr.New(apperr.KindAlreadyBooked, "student is already booked in this group")
	ErrGroupFull       = apperr.New(apperr.KindGroupFull, "group is full")
)

const tracerName = "github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"

// Engine owns every change to group membership. Creating and cancelling
// bookings lock the group row first, so the capacity check and the write
// are atomic with respect to other bookings of the same group.
type Engine struct {
	db        *bun.DB
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewEngine(db *bun.DB, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Engine{
		db:        db,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// CreateBooking books studentID into groupID. It fails with ErrAlreadyBooked
// when the pair exists, ErrGroupFull when no seat is left, and a NotFound
// error for an unknown student or group. Nothing is written on failure.
func (e *Engine) CreateBooking(ctx context.Context, studentID, groupID int64) (*Booking, error) {
	ctx, span := e.startSpan(ctx, "CreateBooking", studentID, groupID)
	defer span.End()

	b := &Booking{StudentID: studentID, GroupID: groupID}
	start := time.Now()
	err := e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		capacity, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := studentExists(ctx, tx, studentID); err != nil {
			return err
		}

		booked, err := tx.NewSelect().
			Model((*Booking)(nil)).
			Where("b.student_id = ?", studentID).
			Where("b.group_id = ?", groupID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if booked {
			return ErrAlreadyBooked
		}

		count, err := countBookings(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if count >= capacity {
			return ErrGroupFull
		}

		if _, err := tx.NewInsert().Model(b).Returning("*").Exec(ctx); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyBooked
			}
			return err
		}
		return nil
	})
	e.metrics.DB().RecordQuery(ctx, "insert", "bookings", time.Since(start), err)

	if err != nil {
		e.recordRejection(ctx, span, err)
		return nil, err
	}

	e.metrics.RecordBookingCreated(ctx)
	e.logger.InfoContext(ctx, "booking created", "booking_id", b.ID, "student_id", studentID, "group_id", groupID)
	e.publish(ctx, newEvent(EventCreated, b))
	return b, nil
}

// CancelBooking removes the booking of studentID in groupID. A missing
// booking is not an error: removed is false and nothing changes. Unknown
// students or groups fail with NotFound.
func (e *Engine) CancelBooking(ctx context.Context, studentID, groupID int64) (bool, error) {
	ctx, span := e.startSpan(ctx, "CancelBooking", studentID, groupID)
	defer span.End()

	var removed *Booking
	start := time.Now()
	err := e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := studentExists(ctx, tx, studentID); err != nil {
			return err
		}

		existing := new(Booking)
		err := tx.NewSelect().
			Model(existing).
			Where("b.student_id = ?", studentID).
			Where("b.group_id = ?", groupID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model(existing).WherePK().Exec(ctx); err != nil {
			return err
		}
		removed = existing
		return nil
	})
	e.metrics.DB().RecordQuery(ctx, "delete", "bookings", time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	if removed == nil {
		span.SetAttributes(attribute.Bool("booking.removed", false))
		return false, nil
	}

	e.afterCancel(ctx, removed)
	return true, nil
}

// CancelBookingByID removes one booking by id, under its group's lock.
func (e *Engine) CancelBookingByID(ctx context.Context, bookingID int64) error {
	b, err := e.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	ctx, span := e.startSpan(ctx, "CancelBookingByID", b.StudentID, b.GroupID)
	defer span.End()

	start := time.Now()
	err = e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockGroup(ctx, tx, b.GroupID); err != nil {
			return err
		}
		result, err := tx.NewDelete().Model((*Booking)(nil)).Where("id = ?", bookingID).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrBookingNotFound
		}
		return nil
	})
	e.metrics.DB().RecordQuery(ctx, "delete", "bookings", time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, group.ErrGroupNotFound) {
			return ErrBookingNotFound
		}
		return err
	}

	e.afterCancel(ctx, b)
	return nil
}

func (e *Engine) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	if id <= 0 {
		return nil, apperr.ErrInvalidInput
	}
	start := time.Now()
	b := new(Booking)
	err := e.db.NewSelect().Model(b).Where("b.id = ?", id).Scan(ctx)

	e.metrics.DB().RecordQuery(ctx, "select", "bookings", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// Availability reports capacity and the current booking count of a group.
func (e *Engine) Availability(ctx context.Context, groupID int64) (Availability, error) {
	start := time.Now()
	var capacity int
	err := e.db.NewSelect().
		Model((*group.Group)(nil)).
		Column("capacity").
		Where("g.id = ?", groupID).
		Scan(ctx, &capacity)

	e.metrics.DB().RecordQuery(ctx, "select", "groups", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Availability{}, group.ErrGroupNotFound
		}
		return Availability{}, err
	}

	booked, err := countBookings(ctx, e.db, groupID)
	if err != nil {
		return Availability{}, err
	}
	return newAvailability(groupID, capacity, booked), nil
}

func (e *Engine) SeatsLeft(ctx context.Context, groupID int64) (int, error) {
	a, err := e.Availability(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return a.SeatsLeft, nil
}

func (e *Engine) IsFull(ctx context.Context, groupID int64) (bool, error) {
	a, err := e.Availability(ctx, groupID)
	if err != nil {
		return false, err
	}
	return a.IsFull, nil
}

// ListBookingsForStudent returns the student's bookings, newest first.
func (e *Engine) ListBookingsForStudent(ctx context.Context, studentID int64) ([]Booking, error) {
	if err := studentExists(ctx, e.db, studentID); err != nil {
		return nil, err
	}
	return e.FindBookings(ctx, Filter{StudentID: studentID})
}

// ListBookingsForGroup returns the group's bookings, newest first.
func (e *Engine) ListBookingsForGroup(ctx context.Context, groupID int64) ([]Booking, error) {
	if _, err := e.Availability(ctx, groupID); err != nil {
		return nil, err
	}
	return e.FindBookings(ctx, Filter{GroupID: groupID})
}

// FindBookings returns every booking matching f, newest first.
func (e *Engine) FindBookings(ctx context.Context, f Filter) ([]Booking, error) {
	start := time.Now()
	bookings := []Booking{}
	err := f.apply(e.db.NewSelect().Model(&bookings)).
		Order("b.created_at DESC", "b.id DESC").
		Scan(ctx)

	e.metrics.DB().RecordQuery(ctx, "select", "bookings", time.Since(start), err)

	return bookings, err
}

// ListBookings is the paginated administrator listing.
func (e *Engine) ListBookings(ctx context.Context, f Filter, p query.ListParams) ([]Booking, int, error) {
	start := time.Now()
	var bookings []Booking
	q := f.apply(e.db.NewSelect().Model(&bookings))
	q = query.ApplyOrdering(q, "b", p, "id DESC")
	count, err := query.ApplyPage(q, p).ScanAndCount(ctx)

	e.metrics.DB().RecordQuery(ctx, "select", "bookings", time.Since(start), err)

	return bookings, count, err
}

// GroupMembers derives a group's students from its bookings.
func (e *Engine) GroupMembers(ctx context.Context, groupID int64) ([]student.Student, error) {
	start := time.Now()
	students := []student.Student{}
	err := e.db.NewSelect().
		Model(&students).
		Join(`JOIN "bookings" AS "b" ON "b"."student_id" = "s"."id"`).
		Where("b.group_id = ?", groupID).
		Order("b.created_at", "b.id").
		Scan(ctx)

	e.metrics.DB().RecordQuery(ctx, "select", "bookings", time.Since(start), err)

	return students, err
}

func (e *Engine) afterCancel(ctx context.Context, b *Booking) {
	e.metrics.RecordBookingCanceled(ctx)
	e.logger.InfoContext(ctx, "booking canceled", "booking_id", b.ID, "student_id", b.StudentID, "group_id", b.GroupID)
	e.publish(ctx, newEvent(EventCanceled, b))
}

// publish runs after commit. A failed publish is logged and never undoes the
// booking change.
func (e *Engine) publish(ctx context.Context, event Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish booking event",
			"event_type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func (e *Engine) startSpan(ctx context.Context, op string, studentID, groupID int64) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "booking."+op, trace.WithAttributes(
		attribute.Int64("student.id", studentID),
		attribute.Int64("group.id", groupID),
	))
}

func (e *Engine) recordRejection(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch apperr.KindOf(err) {
	case apperr.KindGroupFull:
		e.metrics.RecordBookingRejected(ctx, metrics.ReasonGroupFull)
	case apperr.KindAlreadyBooked:
		e.metrics.RecordBookingRejected(ctx, metrics.ReasonAlreadyBooked)
	case apperr.KindNotFound:
		e.metrics.RecordBookingRejected(ctx, metrics.ReasonNotFound)
	default:
		e.logger.ErrorContext(ctx, "booking failed", "error", err)
	}
}

// lockGroup takes the group row lock and returns the group's capacity.
func lockGroup(ctx context.Context, tx bun.Tx, groupID int64) (int, error) {
	var capacity int
	q := tx.NewSelect().
		Model((*group.Group)(nil)).
		Column("capacity").
		Where("g.id = ?", groupID)
	if err := db.LockForUpdate(tx, q).Scan(ctx, &capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, group.ErrGroupNotFound
		}
		return 0, fmt.Errorf("lock group %d: %w", groupID, err)
	}
	return capacity, nil
}

func studentExists(ctx context.Context, idb bun.IDB, studentID int64) error {
	exists, err := idb.NewSelect().
		Model((*student.Student)(nil)).
		Where("s.id = ?", studentID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return student.ErrStudentNotFound
	}
	return nil
}

func countBookings(ctx context.Context, idb bun.IDB, groupID int64) (int, error) {
	return idb.NewSelect().
		Model((*Booking)(nil)).
		Where("b.group_id = ?", groupID).
		Count(ctx)
}
