package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// LedgerTable is the job ledger table name.
const LedgerTable = "CacheStatus"

const (
	colID           = "Id"
	colFileName     = "FileName"
	colStartTime    = "StartTime"
	colJobFinished  = "JobFinished"
	colEntriesAdded = "EntriesAdded"
	colFilledTable  = "FilledTable"
	colFinishedTime = "FinishedTime"
	colContentHash  = "ContentHash"
)

var ledgerColumns = []string{
	colID, colFileName, colStartTime, colJobFinished,
	colEntriesAdded, colFilledTable, colFinishedTime, colContentHash,
}

// JobRecord is one attempt to load one cached file.
type JobRecord struct {
	ID           uuid.UUID
	FileName     string
	StartTime    time.Time
	Finished     bool
	FinishTime   *time.Time
	EntriesAdded *int
	FilledSchema *string
	ContentHash  *string
}

func (j JobRecord) State() constants.JobState { return constants.StateOf(j.Finished) }

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	FileName    string
	Finished    *bool
	StartedFrom *time.Time
	StartedTo   *time.Time // exclusive
	Limit       int
}

// DuplicateCompletion is a file with more than one finished job.
type DuplicateCompletion struct {
	FileName string
	Count    int
}

type LedgerSummary struct {
	Total      int
	Finished   int
	Unfinished int
	Duplicates []DuplicateCompletion
}

// JobLedger records ingestion jobs so each file is loaded once.
type JobLedger interface {
	CreateJob(ctx context.Context, fileName, contentHash string) (uuid.UUID, error)
	MarkFinished(ctx context.Context, jobID uuid.UUID, entriesAdded int, schemaName string) error
	IsAlreadyProcessed(ctx context.Context, fileName string) (bool, error)
	ListJobs(ctx context.Context, f JobFilter) ([]JobRecord, error)
	Summary(ctx context.Context) (LedgerSummary, error)
}

type jobLedgerRepo struct {
	drv *entsql.Driver
	log *slog.Logger
	now func() time.Time
}

// LedgerOption configures NewJobLedger.
type LedgerOption func(*jobLedgerRepo)

// WithClock replaces time.Now for start and finish timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(r *jobLedgerRepo) { r.now = now }
}

func NewJobLedger(db *DB, log *slog.Logger, opts ...LedgerOption) JobLedger {
	if log == nil {
		log = slog.Default()
	}
	r := &jobLedgerRepo{drv: db.Driver, log: log, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *jobLedgerRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *jobLedgerRepo) CreateJob(ctx context.Context, fileName, contentHash string) (uuid.UUID, error) {
	id := uuid.New()
	var hash any
	if contentHash != "" {
		hash = contentHash
	}
	q, args := r.builder().Insert(LedgerTable).
		Columns(colID, colFileName, colStartTime, colJobFinished, colContentHash).
		Values(id, fileName, r.now().UTC(), false, hash).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("cache_status create failed", "file", fileName, "err", err)
		return uuid.Nil, common.StorageFault("create job", err)
	}
	r.log.Info("cache_status job started", "job_id", id, "file", fileName)
	return id, nil
}

func (r *jobLedgerRepo) MarkFinished(ctx context.Context, jobID uuid.UUID, entriesAdded int, schemaName string) error {
	q, args := r.builder().Update(LedgerTable).
		Set(colJobFinished, true).
		Set(colFinishedTime, r.now().UTC()).
		Set(colEntriesAdded, entriesAdded).
		Set(colFilledTable, schemaName).
		Where(entsql.EQ(colID, jobID)).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.log.Error("cache_status finish failed", "job_id", jobID, "err", err)
		return common.StorageFault("mark job finished", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.StorageFault("mark job finished", err)
	}
	if n == 0 {
		r.log.Error("cache_status finish failed", "job_id", jobID, "err", common.ErrNotFound)
		return common.StorageFault(fmt.Sprintf("mark job %s finished", jobID), common.ErrNotFound)
	}
	r.log.Info("cache_status job finished", "job_id", jobID, "entries", entriesAdded, "table", schemaName)
	return nil
}

func (r *jobLedgerRepo) IsAlreadyProcessed(ctx context.Context, fileName string) (bool, error) {
	b := r.builder()
	q, args := b.Select(entsql.Count("*")).
		From(b.Table(LedgerTable)).
		Where(entsql.And(entsql.EQ(colFileName, fileName), entsql.EQ(colJobFinished, true))).
		Query()
	n, err := r.count(ctx, q, args)
	if err != nil {
		r.log.Error("cache_status lookup failed", "file", fileName, "err", err)
		return false, common.StorageFault("check job ledger", err)
	}
	if n > 1 {
		r.log.Warn("duplicate completion", "file", fileName, "count", n)
	}
	return n > 0, nil
}

func (r *jobLedgerRepo) count(ctx context.Context, q string, args []any) (int, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}

func (r *jobLedgerRepo) ListJobs(ctx context.Context, f JobFilter) ([]JobRecord, error) {
	b := r.builder()
	sel := b.Select(ledgerColumns...).From(b.Table(LedgerTable))

	var preds []*entsql.Predicate
	if f.FileName != "" {
		preds = append(preds, entsql.EQ(colFileName, f.FileName))
	}
	if f.Finished != nil {
		preds = append(preds, entsql.EQ(colJobFinished, *f.Finished))
	}
	if f.StartedFrom != nil {
		preds = append(preds, entsql.GTE(colStartTime, f.StartedFrom.UTC()))
	}
	if f.StartedTo != nil {
		preds = append(preds, entsql.LT(colStartTime, f.StartedTo.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(colStartTime, colID)
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	q, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.log.Error("cache_status list failed", "err", err)
		return nil, common.StorageFault("list jobs", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			j        JobRecord
			finished sql.NullTime
			entries  sql.NullInt64
			table    sql.NullString
			hash     sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.FileName, &j.StartTime, &j.Finished, &entries, &table, &finished, &hash); err != nil {
			return nil, common.StorageFault("scan job", err)
		}
		if finished.Valid {
			t := finished.Time
			j.FinishTime = &t
		}
		if entries.Valid {
			n := int(entries.Int64)
			j.EntriesAdded = &n
		}
		if table.Valid {
			j.FilledSchema = &table.String
		}
		if hash.Valid {
			j.ContentHash = &hash.String
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageFault("list jobs", err)
	}
	return out, nil
}

func (r *jobLedgerRepo) Summary(ctx context.Context) (LedgerSummary, error) {
	b := r.builder()
	var s LedgerSummary

	q, args := b.Select(colJobFinished, entsql.Count("*")).
		From(b.Table(LedgerTable)).
		GroupBy(colJobFinished).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return s, common.StorageFault("summarize ledger", err)
	}
	for rows.Next() {
		var (
			finished bool
			n        int
		)
		if err := rows.Scan(&finished, &n); err != nil {
			rows.Close()
			return s, common.StorageFault("summarize ledger", err)
		}
		if finished {
			s.Finished = n
		} else {
			s.Unfinished = n
		}
	}
	err := rows.Err()
	rows.Close()
	if err != nil {
		return s, common.StorageFault("summarize ledger", err)
	}
	s.Total = s.Finished + s.Unfinished

	q, args = b.Select(colFileName, entsql.Count("*")).
		From(b.Table(LedgerTable)).
		Where(entsql.EQ(colJobFinished, true)).
		GroupBy(colFileName).
		Having(entsql.GT(entsql.Count("*"), 1)).
		OrderBy(colFileName).
		Query()
	var dup entsql.Rows
	if err := r.drv.Query(ctx, q, args, &dup); err != nil {
		return s, common.StorageFault("summarize ledger", err)
	}
	defer dup.Close()
	for dup.Next() {
		var d DuplicateCompletion
		if err := dup.Scan(&d.FileName, &d.Count); err != nil {
			return s, common.StorageFault("summarize ledger", err)
		}
		s.Duplicates = append(s.Duplicates, d)
	}
	if err := dup.Err(); err != nil {
		return s, common.StorageFault("summarize ledger", err)
	}
	return s, nil
}
