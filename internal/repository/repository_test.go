package repository

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
)

// openTestDB returns a migrated sqlite database in a temp dir.
func openTestDB(t *testing.T, logger *slog.Logger) *DB {
	t.Helper()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	}
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, Name: filepath.Join(t.TempDir(), "gvb.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db, registry.Schemas()...))
	return db
}

func countRows(t *testing.T, db *DB, table string, where string, args ...any) int {
	t.Helper()
	q := `SELECT COUNT(*) FROM "` + table + `"`
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	require.NoError(t, db.SQL().QueryRowContext(context.Background(), q, args...).Scan(&n))
	return n
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}
