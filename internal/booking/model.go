package booking

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
)

// Booking is one student's enrollment in one group. Rows are only ever
// inserted or deleted.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	StudentID int64     `bun:"student_id,notnull,unique:student_group" json:"student_id"`
	GroupID   int64     `bun:"group_id,notnull,unique:student_group" json:"group_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (*Booking) ForeignKeys() []string {
	return []string{
		`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`,
		`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`,
	}
}

func (*Booking) Indexes() []db.Index {
	return []db.Index{
		{Name: "bookings_group_id_idx", Columns: []string{"group_id"}},
		{Name: "bookings_student_id_idx", Columns: []string{"student_id"}},
	}
}

// Availability is the derived occupancy of a group.
type Availability struct {
	GroupID   int64 `json:"group_id"`
	Capacity  int   `json:"capacity"`
	Booked    int   `json:"booked"`
	SeatsLeft int   `json:"seats_left"`
	IsFull    bool  `json:"is_full"`
}

func newAvailability(groupID int64, capacity, booked int) Availability {
	seats := capacity - booked
	if seats < 0 {
		seats = 0
	}
	return Availability{
		GroupID:   groupID,
		Capacity:  capacity,
		Booked:    booked,
		SeatsLeft: seats,
		IsFull:    booked >= capacity,
	}
}

// Filter narrows ListBookings. Zero fields are ignored.
type Filter struct {
	StudentID int64
	GroupID   int64
}

func (f Filter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.StudentID > 0 {
		q = q.Where("b.student_id = ?", f.StudentID)
	}
	if f.GroupID > 0 {
		q = q.Where("b.group_id = ?", f.GroupID)
	}
	return q
}

type CreateRequest struct {
	GroupID   int64  `json:"group_id" validate:"required,gt=0"`
	StudentID *int64 `json:"student_id" validate:"omitempty,gt=0"`
}

// JoinResponse is the body of POST /bookings/group/{group_id}/join.
type JoinResponse struct {
	Message   string   `json:"message"`
	Booking   *Booking `json:"booking"`
	SeatsLeft int      `json:"seats_left"`
}

// LeaveResponse is the body of POST /bookings/group/{group_id}/leave.
type LeaveResponse struct {
	Message   string `json:"message"`
	Removed   bool   `json:"removed"`
	SeatsLeft int    `json:"seats_left"`
}
