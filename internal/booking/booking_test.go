package booking_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/logger"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/group"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
	"github.com/rewan24/E-Learning-Lessons-Platform/testing/testdb"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []booking.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e booking.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db        *bun.DB
	users     user.Service
	students  student.Service
	groups    group.Service
	engine    *booking.Engine
	publisher *recordingPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	bunDB := testdb.NewSQLite(t,
		(*user.User)(nil),
		(*student.Student)(nil),
		(*group.Group)(nil),
		(*booking.Booking)(nil),
	)
	m := metrics.NewMock()
	pub := &recordingPublisher{}
	return &fixture{
		db:        bunDB,
		users:     user.NewService(user.NewRepository(bunDB, m)),
		students:  student.NewService(student.NewRepository(bunDB, m)),
		groups:    group.NewService(group.NewRepository(bunDB, m)),
		engine:    booking.NewEngine(bunDB, pub, m, logger.NewDiscard()),
		publisher: pub,
	}
}

func (f *fixture) newStudent(t *testing.T, name string, userID *int64) *student.Student {
	t.Helper()
	s, err := f.students.CreateStudent(context.Background(), student.CreateRequest{
		FullName: name,
		Email:    name + "@example.com",
		Phone:    "01012345678",
		Stage:    validation.StageGrade6,
		UserID:   userID,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) newGroup(t *testing.T, name string, capacity int) *group.Group {
	t.Helper()
	g, err := f.groups.CreateGroup(context.Background(), group.CreateRequest{
		Name:     name,
		Stage:    validation.StageGrade6,
		Capacity: &capacity,
		Schedule: "17:00",
		Days:     "Sun, Tue",
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) newUser(t *testing.T, name string) *user.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), user.NewUser{Username: name, Email: name + "@example.com", Password: "secret123"})
	require.NoError(t, err)
	return u
}

func TestEngine_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("FillsCapacity", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 2)
		s1 := f.newStudent(t, "s1", nil)
		s2 := f.newStudent(t, "s2", nil)
		s3 := f.newStudent(t, "s3", nil)

		b, err := f.engine.CreateBooking(ctx, s1.ID, g.ID)
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.False(t, b.CreatedAt.IsZero())

		seats, err := f.engine.SeatsLeft(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, seats)

		_, err = f.engine.CreateBooking(ctx, s2.ID, g.ID)
		require.NoError(t, err)

		full, err := f.engine.IsFull(ctx, g.ID)
		require.NoError(t, err)
		assert.True(t, full)

		_, err = f.engine.CreateBooking(ctx, s3.ID, g.ID)
		assert.ErrorIs(t, err, booking.ErrGroupFull)

		a, err := f.engine.Availability(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.Availability{GroupID: g.ID, Capacity: 2, Booked: 2, SeatsLeft: 0, IsFull: true}, a)

		assert.Equal(t, []string{booking.EventCreated, booking.EventCreated}, f.publisher.types())
	})

	t.Run("AlreadyBooked", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 5)
		s := f.newStudent(t, "s1", nil)

		_, err := f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)

		_, err = f.engine.CreateBooking(ctx, s.ID, g.ID)
		assert.ErrorIs(t, err, booking.ErrAlreadyBooked)

		bookings, err := f.engine.ListBookingsForGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, bookings, 1)
	})

	t.Run("AlreadyBookedBeforeFull", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Solo", 1)
		s := f.newStudent(t, "s1", nil)

		_, err := f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)

		_, err = f.engine.CreateBooking(ctx, s.ID, g.ID)
		assert.ErrorIs(t, err, booking.ErrAlreadyBooked)
	})

	t.Run("UnknownGroupOrStudent", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 5)
		s := f.newStudent(t, "s1", nil)

		_, err := f.engine.CreateBooking(ctx, s.ID, 999)
		assert.ErrorIs(t, err, group.ErrGroupNotFound)

		_, err = f.engine.CreateBooking(ctx, 999, g.ID)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)

		assert.Empty(t, f.publisher.types())
	})

	t.Run("PublishFailureKeepsBooking", func(t *testing.T) {
		f := setup(t)
		f.publisher.err = errors.New("broker down")
		g := f.newGroup(t, "Math A", 5)
		s := f.newStudent(t, "s1", nil)

		b, err := f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)

		got, err := f.engine.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.StudentID, got.StudentID)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 5)
		s := f.newStudent(t, "s1", nil)

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.engine.CreateBooking(canceled, s.ID, g.ID)
		require.Error(t, err)

		a, err := f.engine.Availability(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Booked)
	})
}

func TestEngine_ConcurrentBookings(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	const seats, contenders = 3, 12
	g := f.newGroup(t, "Popular", seats)
	students := make([]*student.Student, contenders)
	for i := range students {
		students[i] = f.newStudent(t, "student"+string(rune('a'+i)), nil)
	}

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for _, s := range students {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.engine.CreateBooking(ctx, id, g.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, booking.ErrGroupFull):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(s.ID)
	}
	wg.Wait()

	assert.Equal(t, int32(seats), ok.Load())
	assert.Equal(t, int32(contenders-seats), full.Load())

	a, err := f.engine.Availability(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, seats, a.Booked)
	assert.Equal(t, 0, a.SeatsLeft)
}

func TestEngine_CancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("FreesOneSeat", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 1)
		s1 := f.newStudent(t, "s1", nil)
		s2 := f.newStudent(t, "s2", nil)

		_, err := f.engine.CreateBooking(ctx, s1.ID, g.ID)
		require.NoError(t, err)

		removed, err := f.engine.CancelBooking(ctx, s1.ID, g.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = f.engine.CreateBooking(ctx, s2.ID, g.ID)
		require.NoError(t, err)

		assert.Equal(t, []string{booking.EventCreated, booking.EventCanceled, booking.EventCreated}, f.publisher.types())
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 3)
		s := f.newStudent(t, "s1", nil)

		removed, err := f.engine.CancelBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		seats, err := f.engine.SeatsLeft(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, seats)
		assert.Empty(t, f.publisher.types())
	})

	t.Run("RebookAfterCancel", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 3)
		s := f.newStudent(t, "s1", nil)

		_, err := f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)
		_, err = f.engine.CancelBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)
		_, err = f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)
	})

	t.Run("UnknownGroupOrStudent", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 3)
		s := f.newStudent(t, "s1", nil)

		_, err := f.engine.CancelBooking(ctx, s.ID, 999)
		assert.ErrorIs(t, err, group.ErrGroupNotFound)

		_, err = f.engine.CancelBooking(ctx, 999, g.ID)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("ByID", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", 3)
		s := f.newStudent(t, "s1", nil)

		b, err := f.engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)

		require.NoError(t, f.engine.CancelBookingByID(ctx, b.ID))
		assert.ErrorIs(t, f.engine.CancelBookingByID(ctx, b.ID), booking.ErrBookingNotFound)

		_, err = f.engine.GetBooking(ctx, b.ID)
		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	})
}

func TestEngine_Listings(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	g1 := f.newGroup(t, "Math A", 5)
	g2 := f.newGroup(t, "Math B", 5)
	s1 := f.newStudent(t, "s1", nil)
	s2 := f.newStudent(t, "s2", nil)

	b1, err := f.engine.CreateBooking(ctx, s1.ID, g1.ID)
	require.NoError(t, err)
	b2, err := f.engine.CreateBooking(ctx, s1.ID, g2.ID)
	require.NoError(t, err)
	b3, err := f.engine.CreateBooking(ctx, s2.ID, g1.ID)
	require.NoError(t, err)

	ids := func(bookings []booking.Booking) []int64 {
		out := make([]int64, 0, len(bookings))
		for _, b := range bookings {
			out = append(out, b.ID)
		}
		return out
	}

	t.Run("ForStudent_NewestFirst", func(t *testing.T) {
		bookings, err := f.engine.ListBookingsForStudent(ctx, s1.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{b2.ID, b1.ID}, ids(bookings))

		_, err = f.engine.ListBookingsForStudent(ctx, 999)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("ForGroup_NewestFirst", func(t *testing.T) {
		bookings, err := f.engine.ListBookingsForGroup(ctx, g1.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{b3.ID, b1.ID}, ids(bookings))

		_, err = f.engine.ListBookingsForGroup(ctx, 999)
		assert.ErrorIs(t, err, group.ErrGroupNotFound)
	})

	t.Run("ListBookings_Paginated", func(t *testing.T) {
		p := query.ListParams{Page: 1, PageSize: 2}
		bookings, total, err := f.engine.ListBookings(ctx, booking.Filter{}, p)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []int64{b3.ID, b2.ID}, ids(bookings))

		bookings, total, err = f.engine.ListBookings(ctx, booking.Filter{GroupID: g2.ID}, p)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []int64{b2.ID}, ids(bookings))
	})

	t.Run("GroupMembers", func(t *testing.T) {
		members, err := f.engine.GroupMembers(ctx, g1.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, s1.ID, members[0].ID)
		assert.Equal(t, s2.ID, members[1].ID)
	})
}

func TestEngine_CascadeDeletes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	g := f.newGroup(t, "Math A", 5)
	s1 := f.newStudent(t, "s1", nil)
	s2 := f.newStudent(t, "s2", nil)
	_, err := f.engine.CreateBooking(ctx, s1.ID, g.ID)
	require.NoError(t, err)
	_, err = f.engine.CreateBooking(ctx, s2.ID, g.ID)
	require.NoError(t, err)

	require.NoError(t, f.students.DeleteStudent(ctx, s1.ID))
	a, err := f.engine.Availability(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Booked)

	require.NoError(t, f.groups.DeleteGroup(ctx, g.ID))
	bookings, err := f.engine.ListBookingsForStudent(ctx, s2.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}
