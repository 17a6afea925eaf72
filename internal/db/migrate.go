package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
)

// ForeignKeyer is implemented by models whose table references other tables.
// Each entry is the clause after FOREIGN KEY, e.g.
// `("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`.
type ForeignKeyer interface {
	ForeignKeys() []string
}

// Index describes a secondary index created after the table.
type Index struct {
	Name    string
	Columns []string
}

// Indexer is implemented by models that need secondary indexes.
type Indexer interface {
	Indexes() []Index
}

// RunMigrations creates the tables of models in order, followed by their
// indexes. Referenced tables must come before the tables referencing them.
func RunMigrations(ctx context.Context, db *bun.DB, models ...interface{}) error {
	for _, model := range models {
		q := db.NewCreateTable().
			Model(model).
			IfNotExists()
		if fk, ok := model.(ForeignKeyer); ok {
			for _, clause := range fk.ForeignKeys() {
				q = q.ForeignKey(clause)
			}
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for model %T: %w", model, err)
		}

		ix, ok := model.(Indexer)
		if !ok {
			continue
		}
		for _, index := range ix.Indexes() {
			_, err := db.NewCreateIndex().
				Model(model).
				Index(index.Name).
				Column(index.Columns...).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create index %s: %w", index.Name, err)
			}
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}
