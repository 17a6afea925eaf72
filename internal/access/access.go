// Package access carries the authenticated caller through request contexts
// and holds the authorization rules shared by the HTTP handlers.
package access

import (
	"context"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
)

// Caller is the identity extracted from a verified access token.
type Caller struct {
	UserID   int64
	Username string
	IsStaff  bool
}

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerFrom returns the caller stored in ctx, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok && c.UserID > 0
}

// RequireCaller fails with ErrUnauthorized when ctx holds no caller.
func RequireCaller(ctx context.Context) (Caller, error) {
	c, ok := CallerFrom(ctx)
	if !ok {
		return Caller{}, apperr.ErrUnauthorized
	}
	return c, nil
}

// RequireAdmin fails unless ctx holds a staff caller.
func RequireAdmin(ctx context.Context) (Caller, error) {
	c, err := RequireCaller(ctx)
	if err != nil {
		return Caller{}, err
	}
	if !c.IsStaff {
		return Caller{}, apperr.ErrForbidden
	}
	return c, nil
}

// CanActOnStudent reports whether c may read or modify the student profile
// owned by ownerUserID. Unlinked profiles belong to administrators only.
func CanActOnStudent(c Caller, ownerUserID *int64) bool {
	if c.IsStaff {
		return true
	}
	return ownerUserID != nil && *ownerUserID == c.UserID
}

// StudentResolver finds the student profile linked to a user.
type StudentResolver interface {
	StudentIDForUser(ctx context.Context, userID int64) (int64, error)
}

// RequireStudent resolves the caller's linked student id or fails with
// ErrNoLinkedStudent.
func RequireStudent(ctx context.Context, resolver StudentResolver) (Caller, int64, error) {
	c, err := RequireCaller(ctx)
	if err != nil {
		return Caller{}, 0, err
	}
	studentID, err := resolver.StudentIDForUser(ctx, c.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return c, 0, apperr.ErrNoLinkedStudent
		}
		return c, 0, err
	}
	return c, studentID, nil
}
