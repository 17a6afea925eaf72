package group

import (
	"context"
	"strings"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

var (
	ErrGroupNotFound   = apperr.New(apperr.KindNotFound, "group not found")
	ErrNameExists      = apperr.New(apperr.KindConflict, "a group with this name already exists")
	ErrInvalidCapacity = apperr.New(apperr.KindInvalidCapacity, "capacity cannot be lower than the number of booked students")
)

type Service interface {
	CreateGroup(ctx context.Context, req CreateRequest) (*Group, error)
	GetGroup(ctx context.Context, id int64) (*Group, error)
	ListGroups(ctx context.Context, p query.ListParams) ([]Group, int, error)
	UpdateGroup(ctx context.Context, id int64, req UpdateRequest) (*Group, error)
	DeleteGroup(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) CreateGroup(ctx context.Context, req CreateRequest) (*Group, error) {
	capacity := DefaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	if capacity < 1 {
		return nil, apperr.ErrInvalidInput
	}

	g := &Group{
		Name:     strings.TrimSpace(req.Name),
		Stage:    req.Stage,
		Capacity: capacity,
		Schedule: validation.CleanText(req.Schedule),
		Days:     validation.CleanText(req.Days),
	}
	return s.repo.Create(ctx, g)
}

// GetGroup returns the group with its current availability.
func (s *service) GetGroup(ctx context.Context, id int64) (*Group, error) {
	if id <= 0 {
		return nil, apperr.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListGroups(ctx context.Context, p query.ListParams) ([]Group, int, error) {
	return s.repo.List(ctx, p)
}

// UpdateGroup applies a partial update. Lowering capacity below the number
// of booked students fails with ErrInvalidCapacity and changes nothing.
func (s *service) UpdateGroup(ctx context.Context, id int64, req UpdateRequest) (*Group, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		g.Name = strings.TrimSpace(*req.Name)
	}
	if req.Stage != nil {
		g.Stage = *req.Stage
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, apperr.ErrInvalidInput
		}
		g.Capacity = *req.Capacity
	}
	if req.Schedule != nil {
		g.Schedule = validation.CleanText(*req.Schedule)
	}
	if req.Days != nil {
		g.Days = validation.CleanText(*req.Days)
	}

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) DeleteGroup(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}
