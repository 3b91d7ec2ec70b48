package repository

import (
	"context"
	"strings"

	"entgo.io/ent"
	sqlschema "entgo.io/ent/dialect/sql/schema"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	gvb "github.com/joseph-ayodele/gvb-ingest/db/ent/schema"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
)

// Tables describes the ledger table followed by the given raw tables. Every
// JobId column references the ledger.
func Tables(schemas ...ent.Interface) ([]*sqlschema.Table, error) {
	ledger, err := registry.Describe(gvb.CacheStatus{})
	if err != nil {
		return nil, err
	}
	tables := []*sqlschema.Table{ledger}
	for _, s := range schemas {
		t, err := registry.Describe(s)
		if err != nil {
			return nil, err
		}
		if col, ok := t.Column(constants.JobTagField); ok {
			t.AddForeignKey(&sqlschema.ForeignKey{
				Symbol:     strings.ToLower(t.Name) + "_job",
				Columns:    []*sqlschema.Column{col},
				RefTable:   ledger,
				RefColumns: []*sqlschema.Column{ledger.PrimaryKey[0]},
				OnDelete:   sqlschema.NoAction,
			})
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Migrate creates missing tables and indexes. Existing columns and indexes
// are never dropped.
func Migrate(ctx context.Context, db *DB, schemas ...ent.Interface) error {
	tables, err := Tables(schemas...)
	if err != nil {
		return err
	}
	m, err := sqlschema.NewMigrate(db.Driver,
		sqlschema.WithDropColumn(false),
		sqlschema.WithDropIndex(false),
	)
	if err != nil {
		return common.StorageFault("prepare migration", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		db.log.Error("schema migration failed", "err", err)
		return common.StorageFault("migrate schema", err)
	}
	db.log.Info("schema up to date", "tables", len(tables))
	return nil
}
