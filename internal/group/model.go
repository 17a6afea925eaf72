package group

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
)

// DefaultCapacity applies when a group is created without a capacity.
const DefaultCapacity = 10

// Group is a capacity-bounded cohort. BookedCount is derived from bookings
// on every read and never stored.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,unique,notnull" json:"name"`
	Stage     string    `bun:"stage,notnull" json:"stage"`
	Capacity  int       `bun:"capacity,notnull" json:"capacity"`
	Schedule  string    `bun:"schedule,notnull" json:"schedule"`
	Days      string    `bun:"days,notnull" json:"days"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	BookedCount int  `bun:"booked_count,scanonly" json:"booked_count"`
	SeatsLeft   int  `bun:"-" json:"seats_left"`
	IsFull      bool `bun:"-" json:"is_full"`
}

func (*Group) Indexes() []db.Index {
	return []db.Index{{Name: "groups_stage_idx", Columns: []string{"stage"}}}
}

// fill sets the derived availability fields from Capacity and BookedCount.
func (g *Group) fill() {
	g.SeatsLeft = g.Capacity - g.BookedCount
	if g.SeatsLeft < 0 {
		g.SeatsLeft = 0
	}
	g.IsFull = g.BookedCount >= g.Capacity
}

type CreateRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Stage    string `json:"stage" validate:"required,stage"`
	Capacity *int   `json:"capacity" validate:"omitempty,min=1,max=10000"`
	Schedule string `json:"schedule" validate:"notblank,max=100"`
	Days     string `json:"days" validate:"max=100"`
}

// UpdateRequest is the payload of PUT/PATCH /groups/{id}. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,notblank,max=100"`
	Stage    *string `json:"stage" validate:"omitempty,stage"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1,max=10000"`
	Schedule *string `json:"schedule" validate:"omitempty,notblank,max=100"`
	Days     *string `json:"days" validate:"omitempty,max=100"`
}

// Member is the short student form shown in an administrator's group detail.
type Member struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Detail is the administrator view of a group, with its members.
type Detail struct {
	*Group
	Students []Member `json:"students"`
}
