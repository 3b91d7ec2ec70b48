package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
)

func TestConfigURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  Config{Driver: DriverPostgres, DSN: "postgres://x@y/z", Host: "ignored"},
			want: "postgres://x@y/z",
		},
		{
			name: "postgres from parts",
			cfg:  Config{Driver: DriverPostgres, Host: "db", Port: 5432, Name: "gvb", Username: "gvb", Password: "p@ss"},
			want: "postgres://gvb:p%40ss@db:5432/gvb?sslmode=disable",
		},
		{
			name: "sqlite",
			cfg:  Config{Driver: DriverSQLite, Name: "/tmp/gvb.db"},
			want: "file:/tmp/gvb.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		},
		{
			name: "mysql",
			cfg:  Config{Driver: DriverMySQL, Host: "db", Port: 3306, Name: "gvb", Username: "gvb", Password: "pw"},
			want: "gvb:pw@tcp(db:3306)/gvb?parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.URL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Config{Driver: "oracle"}.URL()
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	c := common.DefaultConfig().Database
	c.Host = "db"
	got := ConfigFrom(c)
	assert.Equal(t, "postgres", got.Driver)
	assert.Equal(t, "db", got.Host)
	assert.Equal(t, c.ConnectRetries, got.ConnectRetries)
}

func TestOpenUnsupportedDriverFails(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}

func TestOpenGivesUpAfterRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Open(ctx, Config{
		Driver:         DriverSQLite,
		DSN:            "file:" + t.TempDir() + "/missing/dir/gvb.db?mode=rw",
		ConnectRetries: 1,
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStorageFault))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, nil)
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	assert.Equal(t, "sqlite3", db.Dialect())
	assert.Nil(t, db.Pool)
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t, nil)
	require.NoError(t, Migrate(context.Background(), db, registry.Schemas()...))

	n := countRows(t, db, "sqlite_master", `type = 'table' AND name IN (?, ?, ?)`,
		LedgerTable, "GvbReisBestemmingDatumRaw", "GvbRitHerkomstUurRaw")
	assert.Equal(t, 3, n)
}

func TestTablesReferenceLedger(t *testing.T) {
	tables, err := Tables(registry.Schemas()...)
	require.NoError(t, err)
	require.Len(t, tables, 8)
	assert.Equal(t, LedgerTable, tables[0].Name)
	for _, tbl := range tables[1:] {
		require.Len(t, tbl.ForeignKeys, 1, tbl.Name)
		fk := tbl.ForeignKeys[0]
		assert.Same(t, tables[0], fk.RefTable)
		assert.Equal(t, "JobId", fk.Columns[0].Name)
	}
}
