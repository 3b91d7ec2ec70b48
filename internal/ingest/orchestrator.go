package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/lock"
	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

// Deps are the collaborators of an Orchestrator. Locker and Telemetry are
// optional.
type Deps struct {
	Files     Files
	Ledger    repository.JobLedger
	Matcher   *registry.Matcher
	Writer    RowWriter
	Locker    lock.Locker
	Telemetry *Telemetry
	Logger    *slog.Logger
}

type Options struct {
	// Delimiter separates fields; zero means ';'.
	Delimiter rune
	// SampleLimit > 0 only considers the first N cached files.
	SampleLimit int
	// LockKey is the batch lock name; empty disables locking.
	LockKey string
}

// Orchestrator loads cached files into their destination tables, guarded by
// the job ledger so a finished file is never loaded twice.
type Orchestrator struct {
	files   Files
	ledger  repository.JobLedger
	matcher *registry.Matcher
	writer  RowWriter
	locker  lock.Locker
	tel     *Telemetry
	log     *slog.Logger
	opts    Options
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = NewTelemetry(nil, nil)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = constants.DefaultDelimiter
	}
	return &Orchestrator{
		files:   deps.Files,
		ledger:  deps.Ledger,
		matcher: deps.Matcher,
		writer:  deps.Writer,
		locker:  deps.Locker,
		tel:     deps.Telemetry,
		log:     deps.Logger,
		opts:    opts,
	}
}

// RunBatch processes every cached file in name order, one at a time. Per-file
// failures are logged and counted; an error is returned only when the batch
// could not start or the context was cancelled.
func (o *Orchestrator) RunBatch(ctx context.Context) (BatchStats, error) {
	var stats BatchStats
	ctx = common.WithBatchID(ctx, uuid.NewString())
	log := common.LoggerFromContext(ctx, o.log)

	if o.opts.LockKey != "" {
		release, err := o.locker.Obtain(ctx, o.opts.LockKey)
		if err != nil {
			log.Error("batch not started", "reason", "lock", "err", err)
			return stats, fmt.Errorf("obtain batch lock: %w", err)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = release(rctx)
		}()
	}

	names, err := o.files.ListFiles()
	if err != nil {
		log.Error("batch not started", "reason", "list cache", "err", err)
		return stats, err
	}
	if o.opts.SampleLimit > 0 && len(names) > o.opts.SampleLimit {
		log.Info("sample limit applied", "listed", len(names), "limit", o.opts.SampleLimit)
		names = names[:o.opts.SampleLimit]
	}
	stats.Listed = uint32(len(names))

	ctx, span := o.tel.startBatch(ctx, len(names))
	defer span.End()

	log.Info("batch started", "files", len(names))
	start := time.Now()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			log.Warn("batch cancelled", "processed", len(stats.Results), "err", err)
			return stats, err
		}
		res, _ := o.ProcessFile(ctx, name)
		stats.add(res)
	}
	log.Info("batch finished",
		"listed", stats.Listed,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"rows", stats.RowsAdded,
		"took", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

// ProcessFile runs one cached file through the ledger-guarded load. The
// returned error is the file's failure, if any; it is also set on the result.
func (o *Orchestrator) ProcessFile(ctx context.Context, name string) (FileResult, error) {
	log := common.LoggerFromContext(ctx, o.log).With("file", name)
	ctx, span := o.tel.startFile(ctx, name)
	start := time.Now()

	res, err := o.process(ctx, name, log)
	if err != nil {
		res.Status = FileFailed
		res.Err = err
		attrs := []any{"code", common.CodeOf(err), "err", err}
		if res.JobID != uuid.Nil {
			attrs = append(attrs, "job_id", res.JobID)
		}
		log.Log(ctx, failureLevel(err), "file not ingested", attrs...)
	}
	o.tel.endFile(ctx, span, res, common.CodeOf(err), time.Since(start))
	return res, err
}

func (o *Orchestrator) process(ctx context.Context, name string, log *slog.Logger) (FileResult, error) {
	res := FileResult{FileName: name}

	done, err := o.ledger.IsAlreadyProcessed(ctx, name)
	if err != nil {
		return res, err
	}
	if done {
		res.Status = FileSkipped
		log.Debug("already processed, skipping")
		return res, nil
	}

	tbl, hash, err := o.read(name)
	if err != nil {
		return res, err
	}
	canonicalize(tbl.header, log)

	rt, ok := o.matcher.Resolve(tbl.header)
	if !ok {
		return res, common.UnresolvableSchema("no record type has columns " + strings.Join(tbl.header, ","))
	}
	res.RecordType = rt.Name

	rows, err := typedRows(rt, tbl)
	if err != nil {
		return res, err
	}

	jobID, err := o.ledger.CreateJob(ctx, name, hash)
	if err != nil {
		return res, err
	}
	res.JobID = jobID

	n, err := o.writer.BulkInsert(ctx, registry.Batch{Type: rt, JobID: jobID, Rows: rows})
	if err != nil {
		log.Warn("job left unfinished", "job_id", jobID)
		return res, err
	}
	if err := o.ledger.MarkFinished(ctx, jobID, n, rt.Name); err != nil {
		// rows are committed; the next batch loads the file again
		log.Warn("rows committed but job not marked finished", "job_id", jobID, "rows", n)
		return res, err
	}

	res.Status = FileLoaded
	res.Rows = n
	log.Info("file ingested", "job_id", jobID, "record_type", rt.Name, "rows", n)
	return res, nil
}

// read parses a cached file and fingerprints its content in the same pass.
func (o *Orchestrator) read(name string) (*table, string, error) {
	f, err := o.files.Open(name)
	if err != nil {
		return nil, "", common.ParseFault("open "+name, err)
	}
	defer f.Close()

	h := xxhash.New()
	tbl, err := readTable(io.TeeReader(f, h), o.opts.Delimiter)
	if err != nil {
		return nil, "", common.ParseFault("parse "+name, err)
	}
	return tbl, fmt.Sprintf("%016x", h.Sum64()), nil
}

func typedRows(rt *registry.RecordType, tbl *table) ([][]any, error) {
	b, err := rt.Bind(tbl.header)
	if err != nil {
		return nil, common.ParseFault("bind header", err)
	}
	rows := make([][]any, 0, len(tbl.records))
	for i, rec := range tbl.records {
		row, err := b.Row(rec)
		if err != nil {
			// line 1 is the header
			return nil, common.ParseFault(fmt.Sprintf("line %d", i+2), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// failureLevel is critical for files that can never load as they are: an
// unknown column set or malformed content. Storage faults stay at error.
func failureLevel(err error) slog.Level {
	switch common.CodeOf(err) {
	case common.CodeUnresolvableSchema, common.CodeParseFault:
		return common.LevelCritical
	}
	return slog.LevelError
}

// IsBatchBusy reports whether RunBatch failed because another process holds
// the batch lock.
func IsBatchBusy(err error) bool {
	return errors.Is(err, lock.ErrNotObtained)
}
