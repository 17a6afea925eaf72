package auth

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
)

// RefreshToken stores the SHA-256 hash of an issued refresh token.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	TokenHash string    `bun:"token_hash,unique,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (*RefreshToken) ForeignKeys() []string {
	return []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}
}

func (*RefreshToken) Indexes() []db.Index {
	return []db.Index{{Name: "refresh_tokens_user_id_idx", Columns: []string{"user_id"}}}
}

// PasswordResetToken is a single-use token mailed by forgot-password.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`

	ID        int64      `bun:"id,pk,autoincrement"`
	UserID    int64      `bun:"user_id,notnull"`
	TokenHash string     `bun:"token_hash,unique,notnull"`
	ExpiresAt time.Time  `bun:"expires_at,notnull"`
	UsedAt    *time.Time `bun:"used_at"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (*PasswordResetToken) ForeignKeys() []string {
	return []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}
}

func (*PasswordResetToken) Indexes() []db.Index {
	return []db.Index{{Name: "password_reset_tokens_user_id_idx", Columns: []string{"user_id"}}}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150,alphanumunicode"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"omitempty,eg_phone"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest accepts a username or an email address in Username.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AuthResponse carries a token pair and, on register and login, the user.
type AuthResponse struct {
	Access  string     `json:"access"`
	Refresh string     `json:"refresh"`
	User    *user.User `json:"user,omitempty"`
}
