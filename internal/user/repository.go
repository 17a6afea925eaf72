package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
)

type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, p query.ListParams) ([]User, int, error)
	Update(ctx context.Context, u *User) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
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

func (r *repository) Create(ctx context.Context, u *User) (*User, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(u).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "users", time.Since(start), err)

	if err != nil {
		return nil, r.mapUniqueErr(ctx, u, err)
	}
	return u, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

func (r *repository) GetByLogin(ctx context.Context, usernameOrEmail string) (*User, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if strings.Contains(login, "@") {
		return r.getOne(ctx, "LOWER(u.email) = ?", strings.ToLower(login))
	}
	return r.getOne(ctx, "u.username = ?", login)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "LOWER(u.email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repository) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	start := time.Now()
	u := new(User)
	err := r.db.NewSelect().Model(u).Where(where, arg).Limit(1).Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *repository) List(ctx context.Context, p query.ListParams) ([]User, int, error) {
	start := time.Now()
	var users []User
	q := r.db.NewSelect().Model(&users)
	q = query.ApplySearch(q, p.Search, "u.username", "u.email")
	q = query.ApplyOrdering(q, "u", p, "id")
	count, err := query.ApplyPage(q, p).ScanAndCount(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "users", time.Since(start), err)

	return users, count, err
}

func (r *repository) Update(ctx context.Context, u *User) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(u).
		Column("username", "email", "phone", "password", "is_staff", "is_active").
		WherePK().
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "users", time.Since(start), err)

	if err != nil {
		return r.mapUniqueErr(ctx, u, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	start := time.Now()
	_, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_login = ?", at).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "users", time.Since(start), err)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.NewDelete().Model((*User)(nil)).Where("id = ?", id).Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "users", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// mapUniqueErr names the column that collided, looking it up when the
// driver error does not say.
func (r *repository) mapUniqueErr(ctx context.Context, u *User, err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	if existing, lookupErr := r.GetByLogin(ctx, u.Username); lookupErr == nil && existing.ID != u.ID {
		return ErrUsernameExists
	}
	return ErrEmailExists
}
