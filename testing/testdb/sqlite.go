package testdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
)

// NewSQLite returns a fresh in-memory database with models migrated.
// Each call is isolated; the database is closed when the test ends.
//
// Usage:
//
//	func TestMyRepository(t *testing.T) {
//	    bunDB := testdb.NewSQLite(t, (*user.User)(nil), (*MyModel)(nil))
//	    // ... test
//	}
func NewSQLite(t *testing.T, models ...interface{}) *bun.DB {
	t.Helper()

	bunDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), bunDB, models...), "failed to create tables")
	return bunDB
}
