package student

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    *int64    `bun:"user_id,unique" json:"user_id"`
	FullName  string    `bun:"full_name,notnull" json:"full_name"`
	Email     string    `bun:"email,notnull" json:"email"`
	Phone     string    `bun:"phone,notnull" json:"phone"`
	BirthDate *string   `bun:"birth_date,type:varchar(10)" json:"birth_date"`
	Stage     string    `bun:"stage,notnull" json:"stage"`
	Notes     string    `bun:"notes,type:text,notnull" json:"notes"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (*Student) ForeignKeys() []string {
	return []string{`("user_id") REFERENCES "users" ("id") ON DELETE SET NULL`}
}

func (*Student) Indexes() []db.Index {
	return []db.Index{{Name: "students_stage_idx", Columns: []string{"stage"}}}
}

// CreateRequest is the payload of POST /students. UserID is honoured for
// administrators only; other callers always get a profile linked to themselves.
type CreateRequest struct {
	FullName  string  `json:"full_name" validate:"notblank,max=150"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Phone     string  `json:"phone" validate:"required,eg_phone"`
	BirthDate *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Stage     string  `json:"stage" validate:"required,stage"`
	Notes     string  `json:"notes" validate:"max=2000"`
	UserID    *int64  `json:"user_id" validate:"omitempty,gt=0"`
}

// UpdateRequest is the payload of PUT/PATCH /students/{id}. Nil fields are
// left unchanged.
type UpdateRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,notblank,max=150"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,eg_phone"`
	BirthDate *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Stage     *string `json:"stage" validate:"omitempty,stage"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}
