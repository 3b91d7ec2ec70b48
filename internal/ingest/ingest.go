package ingest

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
)

// FileStatus is the outcome of one file in a batch.
type FileStatus string

const (
	FileSkipped FileStatus = "skipped" // already finished in the ledger
	FileLoaded  FileStatus = "loaded"
	FileFailed  FileStatus = "failed"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	FileName   string
	Status     FileStatus
	JobID      uuid.UUID // zero when no job was created
	RecordType string
	Rows       int
	Err        error
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Listed    uint32
	Skipped   uint32
	Loaded    uint32
	Failed    uint32
	RowsAdded int
	Results   []FileResult
}

func (s *BatchStats) add(r FileResult) {
	switch r.Status {
	case FileSkipped:
		s.Skipped++
	case FileLoaded:
		s.Loaded++
		s.RowsAdded += r.Rows
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// Files is the local cache the orchestrator reads from.
type Files interface {
	ListFiles() ([]string, error)
	Open(name string) (io.ReadCloser, error)
}

// RowWriter loads a batch of typed rows in one transaction.
type RowWriter interface {
	BulkInsert(ctx context.Context, batch registry.Batch) (int, error)
}
