package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
)

type Repository interface {
	Create(ctx context.Context, student *Student) (*Student, error)
	GetByID(ctx context.Context, id int64) (*Student, error)
	GetByUserID(ctx context.Context, userID int64) (*Student, error)
	List(ctx context.Context, p query.ListParams) ([]Student, int, error)
	Update(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, student *Student) (*Student, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "students", time.Since(start), err)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrProfileExists
		}
		if db.IsForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Student, error) {
	return r.getOne(ctx, "s.id = ?", id)
}

func (r *repository) GetByUserID(ctx context.Context, userID int64) (*Student, error) {
	return r.getOne(ctx, "s.user_id = ?", userID)
}

func (r *repository) getOne(ctx context.Context, where string, arg interface{}) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where(where, arg).Limit(1).Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) List(ctx context.Context, p query.ListParams) ([]Student, int, error) {
	start := time.Now()
	var students []Student
	q := r.db.NewSelect().Model(&students)
	if stage := p.Filter("stage"); stage != "" {
		q = q.Where("s.stage = ?", stage)
	}
	q = query.ApplySearch(q, p.Search, "s.full_name", "s.email", "s.phone", "s.notes")
	q = query.ApplyOrdering(q, "s", p, "id")
	count, err := query.ApplyPage(q, p).ScanAndCount(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "students", time.Since(start), err)

	return students, count, err
}

func (r *repository) Update(ctx context.Context, student *Student) error {
	start := time.Now()
	student.UpdatedAt = time.Now().UTC()
	result, err := r.db.NewUpdate().
		Model(student).
		Column("full_name", "email", "phone", "birth_date", "stage", "notes", "updated_at").
		WherePK().
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "students", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// Delete removes the student; its bookings go with it through ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.NewDelete().Model((*Student)(nil)).Where("id = ?", id).Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "students", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}
