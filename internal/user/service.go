package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
)

var (
	ErrUserNotFound   = apperr.New(apperr.KindNotFound, "user not found")
	ErrUsernameExists = apperr.New(apperr.KindConflict, "username already exists")
	ErrEmailExists    = apperr.New(apperr.KindConflict, "email already exists")
)

// NewUser is the input of Service.Create.
type NewUser struct {
	Username string
	Email    string
	Phone    string
	Password string
	IsStaff  bool
}

type Service interface {
	Create(ctx context.Context, nu NewUser) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*User, error)
	List(ctx context.Context, p query.ListParams) ([]User, int, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*User, error)
	Delete(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, password string) error
	RecordLogin(ctx context.Context, id int64) error
	// EnsureAdmin creates a staff user or promotes an existing one.
	EnsureAdmin(ctx context.Context, username, email, password string) (*User, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) Create(ctx context.Context, nu NewUser) (*User, error) {
	username := strings.TrimSpace(nu.Username)
	email := strings.ToLower(strings.TrimSpace(nu.Email))

	if _, err := s.repo.GetByLogin(ctx, username); err == nil {
		return nil, ErrUsernameExists
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	}

	u := &User{
		Username: username,
		Email:    email,
		Phone:    strings.TrimSpace(nu.Phone),
		IsStaff:  nu.IsStaff,
		IsActive: true,
	}
	if err := u.SetPassword(nu.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, u)
}

func (s *service) Get(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, apperr.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByLogin(ctx context.Context, usernameOrEmail string) (*User, error) {
	return s.repo.GetByLogin(ctx, usernameOrEmail)
}

func (s *service) List(ctx context.Context, p query.ListParams) ([]User, int, error) {
	return s.repo.List(ctx, p)
}

func (s *service) Update(ctx context.Context, id int64, req UpdateRequest) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		u.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsStaff != nil {
		u.IsStaff = *req.IsStaff
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if err := u.SetPassword(*req.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) SetPassword(ctx context.Context, id int64, password string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := u.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Update(ctx, u)
}

func (s *service) RecordLogin(ctx context.Context, id int64) error {
	return s.repo.UpdateLastLogin(ctx, id, time.Now().UTC())
}

func (s *service) EnsureAdmin(ctx context.Context, username, email, password string) (*User, error) {
	existing, err := s.repo.GetByLogin(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing == nil {
		return s.Create(ctx, NewUser{Username: username, Email: email, Password: password, IsStaff: true})
	}

	existing.IsStaff = true
	existing.IsActive = true
	if password != "" {
		if err := existing.SetPassword(password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}
