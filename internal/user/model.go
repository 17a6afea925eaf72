package user

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an authentication identity. IsStaff marks administrators.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	Username   string     `bun:"username,unique,notnull" json:"username"`
	Email      string     `bun:"email,unique,notnull" json:"email"`
	Phone      string     `bun:"phone,notnull" json:"phone"`
	Password   string     `bun:"password,notnull" json:"-"`
	IsStaff    bool       `bun:"is_staff,notnull,default:false" json:"is_staff"`
	IsActive   bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	DateJoined time.Time  `bun:"date_joined,nullzero,notnull,default:current_timestamp" json:"date_joined"`
	LastLogin  *time.Time `bun:"last_login" json:"last_login"`
}

// UpdateRequest is the admin payload for PUT/PATCH /users/{id}.
// Nil fields are left unchanged.
type UpdateRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=150,alphanumunicode"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Phone    *string `json:"phone" validate:"omitempty,eg_phone"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
	IsStaff  *bool   `json:"is_staff"`
	IsActive *bool   `json:"is_active"`
}

// Profile is the body of GET /users/me.
type Profile struct {
	User
	StudentID *int64 `json:"student_id"`
}
