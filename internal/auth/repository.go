package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
)

type Repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: m,
	}
}

// CreateRefreshToken stores the hash of a newly issued refresh token.
func (r *Repository) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	start := time.Now()
	refreshToken := &RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}

	_, err := r.db.NewInsert().Model(refreshToken).Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "refresh_tokens", time.Since(start), err)

	return err
}

// GetRefreshToken returns the unexpired token with the given hash, or
// sql.ErrNoRows.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	start := time.Now()
	refreshToken := &RefreshToken{}
	err := r.db.NewSelect().
		Model(refreshToken).
		Where("token_hash = ?", tokenHash).
		Where("expires_at > ?", time.Now().UTC()).
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "refresh_tokens", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return refreshToken, nil
}

// DeleteRefreshToken removes one token and reports whether it existed, so
// concurrent rotations of the same token cannot both succeed.
func (r *Repository) DeleteRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token_hash = ?", tokenHash).
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "refresh_tokens", time.Since(start), err)

	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteUserRefreshTokens revokes every session of a user.
func (r *Repository) DeleteUserRefreshTokens(ctx context.Context, userID int64) error {
	return r.deleteUserRefreshTokens(ctx, r.db, userID)
}

func (r *Repository) deleteUserRefreshTokens(ctx context.Context, idb bun.IDB, userID int64) error {
	start := time.Now()
	_, err := idb.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "refresh_tokens", time.Since(start), err)

	return err
}

// DeleteExpiredTokens removes expired refresh tokens and expired or used
// reset tokens.
func (r *Repository) DeleteExpiredTokens(ctx context.Context) error {
	now := time.Now().UTC()

	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	r.metrics.DB().RecordQuery(ctx, "delete", "refresh_tokens", time.Since(start), err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = r.db.NewDelete().
		Model((*PasswordResetToken)(nil)).
		WhereOr("expires_at < ?", now).
		WhereOr("used_at IS NOT NULL").
		Exec(ctx)
	r.metrics.DB().RecordQuery(ctx, "delete", "password_reset_tokens", time.Since(start), err)
	return err
}

func (r *Repository) CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	start := time.Now()
	resetToken := &PasswordResetToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}

	_, err := r.db.NewInsert().Model(resetToken).Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "password_reset_tokens", time.Since(start), err)

	return err
}

// GetResetToken returns the unused, unexpired reset token with the given
// hash, or sql.ErrNoRows.
func (r *Repository) GetResetToken(ctx context.Context, tokenHash string) (*PasswordResetToken, error) {
	start := time.Now()
	resetToken := &PasswordResetToken{}
	err := r.db.NewSelect().
		Model(resetToken).
		Where("token_hash = ?", tokenHash).
		Where("used_at IS NULL").
		Where("expires_at > ?", time.Now().UTC()).
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "password_reset_tokens", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return resetToken, nil
}

// ConsumeResetToken marks the reset token used, stores the new password hash
// and revokes the user's refresh tokens in one transaction. It fails with
// errTokenConsumed when another request used the token first; on any error
// nothing is written.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenID, userID int64, passwordHash string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		start := time.Now()
		result, err := tx.NewUpdate().
			Model((*PasswordResetToken)(nil)).
			Set("used_at = ?", time.Now().UTC()).
			Where("id = ?", tokenID).
			Where("used_at IS NULL").
			Exec(ctx)
		r.metrics.DB().RecordQuery(ctx, "update", "password_reset_tokens", time.Since(start), err)
		if err := consumedOne(result, err); err != nil {
			return err
		}

		start = time.Now()
		result, err = tx.NewUpdate().
			Model((*user.User)(nil)).
			Set("password = ?", passwordHash).
			Where("id = ?", userID).
			Exec(ctx)
		r.metrics.DB().RecordQuery(ctx, "update", "users", time.Since(start), err)
		if err := consumedOne(result, err); err != nil {
			return err
		}

		if err := r.deleteUserRefreshTokens(ctx, tx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
}

var errTokenConsumed = errors.New("reset token already consumed")

func consumedOne(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errTokenConsumed
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
