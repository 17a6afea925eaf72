package group

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

// bookedCountExpr derives a group's occupancy from the bookings table.
const bookedCountExpr = `(SELECT COUNT(*) FROM "bookings" AS "b" WHERE "b"."group_id" = "g"."id") AS "booked_count"`

type Repository interface {
	Create(ctx context.Context, g *Group) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context, p query.ListParams) ([]Group, int, error)
	Update(ctx context.Context, g *Group) error
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

func (r *repository) Create(ctx context.Context, g *Group) (*Group, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(g).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "groups", time.Since(start), err)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrNameExists
		}
		return nil, err
	}
	g.fill()
	return g, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	start := time.Now()
	g := new(Group)
	err := r.db.NewSelect().
		Model(g).
		ColumnExpr("g.*").
		ColumnExpr(bookedCountExpr).
		Where("g.id = ?", id).
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "groups", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	g.fill()
	return g, nil
}

func (r *repository) List(ctx context.Context, p query.ListParams) ([]Group, int, error) {
	start := time.Now()
	var groups []Group
	q := r.db.NewSelect().
		Model(&groups).
		ColumnExpr("g.*").
		ColumnExpr(bookedCountExpr)
	if stage := p.Filter("stage"); stage != "" {
		q = q.Where("g.stage = ?", stage)
	}
	q = query.ApplySearch(q, p.Search, "g.name")
	q = query.ApplyOrdering(q, "g", p, "id DESC")
	count, err := query.ApplyPage(q, p).ScanAndCount(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "groups", time.Since(start), err)

	for i := range groups {
		groups[i].fill()
	}
	return groups, count, err
}

// Update writes g under the group row lock that booking creation takes, so
// the capacity check sees a stable booking count. A capacity below the
// current count fails with ErrInvalidCapacity and nothing is written.
func (r *repository) Update(ctx context.Context, g *Group) error {
	start := time.Now()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locked := new(Group)
		q := tx.NewSelect().Model(locked).Column("id", "capacity").Where("g.id = ?", g.ID)
		if err := db.LockForUpdate(tx, q).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGroupNotFound
			}
			return err
		}

		booked, err := tx.NewSelect().
			TableExpr(`"bookings" AS "b"`).
			Where(`"b"."group_id" = ?`, g.ID).
			Count(ctx)
		if err != nil {
			return err
		}
		if g.Capacity < booked {
			return ErrInvalidCapacity
		}

		g.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().
			Model(g).
			Column("name", "stage", "capacity", "schedule", "days", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrNameExists
			}
			return err
		}

		g.BookedCount = booked
		g.fill()
		return nil
	})

	r.metrics.DB().RecordQuery(ctx, "update", "groups", time.Since(start), err)

	return err
}

// Delete removes the group; its bookings go with it through ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.NewDelete().Model((*Group)(nil)).Where("id = ?", id).Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "groups", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}
