package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

// Ledger is the read side of the job ledger.
type Ledger interface {
	ListJobs(ctx context.Context, f repository.JobFilter) ([]repository.JobRecord, error)
	Summary(ctx context.Context) (repository.LedgerSummary, error)
}

// Service produces XLSX reports of the job ledger.
type Service struct {
	ledger Ledger
	logger *slog.Logger
}

func NewService(ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, logger: logger}
}

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04:05"
)

var jobHeaders = []string{
	"Job Id",
	"File Name",
	"State",
	"Start Time (UTC)",
	"Finished Time (UTC)",
	"Entries Added",
	"Filled Table",
	"Content Hash",
}

// ExportJobsXLSX returns a workbook with one row per job matching f on the
// Jobs sheet and the ledger totals on the Summary sheet.
func (s *Service) ExportJobsXLSX(ctx context.Context, f repository.JobFilter) ([]byte, error) {
	start := time.Now()

	jobs, err := s.ledger.ListJobs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	sum, err := s.ledger.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	x := excelize.NewFile()
	defer x.Close()
	if err := x.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, err
	}
	if _, err := x.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	writeRow(x, jobsSheet, 1, toAny(jobHeaders)...)
	for i, j := range jobs {
		writeRow(x, jobsSheet, i+2,
			j.ID.String(),
			j.FileName,
			string(j.State()),
			j.StartTime.UTC().Format(timeLayout),
			formatTime(j.FinishTime),
			deref(j.EntriesAdded),
			deref(j.FilledSchema),
			deref(j.ContentHash),
		)
	}
	_ = x.SetColWidth(jobsSheet, "A", "A", 38) // uuid
	_ = x.SetColWidth(jobsSheet, "B", "B", 48)
	_ = x.SetColWidth(jobsSheet, "C", "C", 12)
	_ = x.SetColWidth(jobsSheet, "D", "E", 20)
	_ = x.SetColWidth(jobsSheet, "G", "G", 34)
	_ = x.SetColWidth(jobsSheet, "H", "H", 18)

	writeRow(x, summarySheet, 1, "Total Jobs", sum.Total)
	writeRow(x, summarySheet, 2, "Finished", sum.Finished)
	writeRow(x, summarySheet, 3, "Unfinished", sum.Unfinished)
	writeRow(x, summarySheet, 5, "Duplicate Completions", "Finished Jobs")
	for i, d := range sum.Duplicates {
		writeRow(x, summarySheet, i+6, d.FileName, d.Count)
	}
	_ = x.SetColWidth(summarySheet, "A", "A", 48)
	_ = x.SetColWidth(summarySheet, "B", "B", 14)

	idx, _ := x.GetSheetIndex(jobsSheet)
	x.SetActiveSheet(idx)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobs),
		"duplicates", len(sum.Duplicates),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(x *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = x.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// deref returns the pointed-to value, or "" for nil so empty cells stay empty.
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}
