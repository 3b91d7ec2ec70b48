package repository

import (
	"context"
	"errors"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

type RowWriterOptions struct {
	BatchSize int
	// UseCopy loads through the COPY protocol on postgres.
	UseCopy bool
}

// RowWriter bulk-loads typed rows into a record type's table.
type RowWriter struct {
	db   *DB
	log  *slog.Logger
	opts RowWriterOptions
}

func NewRowWriter(db *DB, log *slog.Logger, opts RowWriterOptions) *RowWriter {
	if log == nil {
		log = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &RowWriter{db: db, log: log, opts: opts}
}

// BulkInsert writes every row of the batch, tagged with the batch's job id,
// in one transaction. Either all rows are committed or none.
func (w *RowWriter) BulkInsert(ctx context.Context, batch registry.Batch) (int, error) {
	if batch.Type == nil {
		return 0, errors.New("bulk insert: batch has no record type")
	}
	if len(batch.Rows) == 0 {
		return 0, nil
	}
	for _, row := range batch.Rows {
		if len(row) != len(batch.Type.Columns) {
			return 0, common.ParseFault("bulk insert", errors.New("row does not match record type columns"))
		}
	}

	var (
		n   int
		err error
	)
	if w.opts.UseCopy && w.db.Pool != nil && w.db.Dialect() == dialect.Postgres {
		n, err = w.copyFrom(ctx, batch)
	} else {
		n, err = w.insert(ctx, batch)
	}
	if err != nil {
		w.log.Error("bulk insert failed", "table", batch.Type.Table, "job_id", batch.JobID, "err", err)
		return 0, common.StorageFault("bulk insert into "+batch.Type.Table, err)
	}
	w.log.Debug("bulk insert committed", "table", batch.Type.Table, "job_id", batch.JobID, "rows", n)
	return n, nil
}

func columnNames(t *registry.RecordType) []string {
	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	return append(cols, constants.JobTagField)
}

func (w *RowWriter) insert(ctx context.Context, batch registry.Batch) (n int, err error) {
	tx, err := w.db.Driver.Tx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				w.log.Error("rollback failed", "table", batch.Type.Table, "err", rerr)
			}
		}
	}()

	cols := columnNames(batch.Type)
	for start := 0; start < len(batch.Rows); start += w.opts.BatchSize {
		end := min(start+w.opts.BatchSize, len(batch.Rows))
		ins := entsql.Dialect(w.db.Dialect()).Insert(batch.Type.Table).Columns(cols...)
		for _, row := range batch.Rows[start:end] {
			ins.Values(append(append(make([]any, 0, len(cols)), row...), batch.JobID)...)
		}
		q, args := ins.Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			return 0, err
		}
		n = end
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (w *RowWriter) copyFrom(ctx context.Context, batch registry.Batch) (n int, err error) {
	tx, err := w.db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows := make([][]any, len(batch.Rows))
	for i, row := range batch.Rows {
		rows[i] = append(append(make([]any, 0, len(row)+1), row...), batch.JobID)
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{batch.Type.Table}, columnNames(batch.Type), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(copied), nil
}
