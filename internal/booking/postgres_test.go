package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/logger"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/group"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
	"github.com/rewan24/E-Learning-Lessons-Platform/testing/testdb"
)

func TestEngine_PostgresRowLock(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t,
		(*user.User)(nil),
		(*student.Student)(nil),
		(*group.Group)(nil),
		(*booking.Booking)(nil),
	)

	ctx := context.Background()
	m := metrics.NewMock()
	students := student.NewService(student.NewRepository(pgContainer.DB, m))
	groups := group.NewService(group.NewRepository(pgContainer.DB, m))
	engine := booking.NewEngine(pgContainer.DB, nil, m, logger.NewDiscard())

	t.Run("ConcurrentCreate_RespectsCapacity", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "bookings", "students", "groups")

		const seats, contenders = 4, 20
		capacity := seats
		g, err := groups.CreateGroup(ctx, group.CreateRequest{
			Name: "Race", Stage: validation.StageGrade6, Capacity: &capacity, Schedule: "17:00",
		})
		require.NoError(t, err)

		ids := make([]int64, contenders)
		for i := range ids {
			s, err := students.CreateStudent(ctx, student.CreateRequest{
				FullName: fmt.Sprintf("Student %d", i),
				Email:    fmt.Sprintf("s%d@example.com", i),
				Phone:    "01012345678",
				Stage:    validation.StageGrade6,
			})
			require.NoError(t, err)
			ids[i] = s.ID
		}

		var ok atomic.Int32
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := engine.CreateBooking(ctx, id, g.ID)
				if err == nil {
					ok.Add(1)
				} else if !errors.Is(err, booking.ErrGroupFull) {
					t.Errorf("unexpected error: %v", err)
				}
			}(id)
		}
		wg.Wait()

		assert.Equal(t, int32(seats), ok.Load())
		a, err := engine.Availability(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, seats, a.Booked)
	})

	t.Run("CapacityUpdate_SeesCommittedBookings", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "bookings", "students", "groups")

		capacity := 2
		g, err := groups.CreateGroup(ctx, group.CreateRequest{
			Name: "Shrink", Stage: validation.StageGrade6, Capacity: &capacity, Schedule: "17:00",
		})
		require.NoError(t, err)
		s, err := students.CreateStudent(ctx, student.CreateRequest{
			FullName: "Only", Email: "only@example.com", Phone: "01012345678", Stage: validation.StageGrade6,
		})
		require.NoError(t, err)
		_, err = engine.CreateBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)

		one := 1
		updated, err := groups.UpdateGroup(ctx, g.ID, group.UpdateRequest{Capacity: &one})
		require.NoError(t, err)
		assert.True(t, updated.IsFull)

		removed, err := engine.CancelBooking(ctx, s.ID, g.ID)
		require.NoError(t, err)
		assert.True(t, removed)
	})
}
