package student

import (
	"context"
	"strings"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

var (
	ErrStudentNotFound = apperr.New(apperr.KindNotFound, "student not found")
	ErrProfileExists   = apperr.New(apperr.KindConflict, "a student profile already exists for this user")
	ErrUserNotFound    = apperr.New(apperr.KindNotFound, "user not found")
)

type Service interface {
	CreateStudent(ctx context.Context, req CreateRequest) (*Student, error)
	GetStudent(ctx context.Context, id int64) (*Student, error)
	GetStudentByUserID(ctx context.Context, userID int64) (*Student, error)
	StudentIDForUser(ctx context.Context, userID int64) (int64, error)
	ListStudents(ctx context.Context, p query.ListParams) ([]Student, int, error)
	UpdateStudent(ctx context.Context, id int64, req UpdateRequest) (*Student, error)
	DeleteStudent(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

// CreateStudent stores a new profile. req.UserID links it to an account;
// one account holds at most one profile.
func (s *service) CreateStudent(ctx context.Context, req CreateRequest) (*Student, error) {
	if req.UserID != nil {
		if _, err := s.repo.GetByUserID(ctx, *req.UserID); err == nil {
			return nil, ErrProfileExists
		}
	}

	student := &Student{
		UserID:    req.UserID,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		BirthDate: req.BirthDate,
		Stage:     req.Stage,
		Notes:     validation.CleanText(req.Notes),
	}
	return s.repo.Create(ctx, student)
}

func (s *service) GetStudent(ctx context.Context, id int64) (*Student, error) {
	if id <= 0 {
		return nil, apperr.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetStudentByUserID(ctx context.Context, userID int64) (*Student, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) StudentIDForUser(ctx context.Context, userID int64) (int64, error) {
	student, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return student.ID, nil
}

func (s *service) ListStudents(ctx context.Context, p query.ListParams) ([]Student, int, error) {
	return s.repo.List(ctx, p)
}

func (s *service) UpdateStudent(ctx context.Context, id int64, req UpdateRequest) (*Student, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		student.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		student.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		student.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.BirthDate != nil {
		student.BirthDate = req.BirthDate
	}
	if req.Stage != nil {
		student.Stage = *req.Stage
	}
	if req.Notes != nil {
		student.Notes = validation.CleanText(*req.Notes)
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}
