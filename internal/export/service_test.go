package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

type fakeLedger struct {
	jobs   []repository.JobRecord
	sum    repository.LedgerSummary
	err    error
	filter repository.JobFilter
}

func (f *fakeLedger) ListJobs(_ context.Context, filter repository.JobFilter) ([]repository.JobRecord, error) {
	f.filter = filter
	return f.jobs, f.err
}

func (f *fakeLedger) Summary(context.Context) (repository.LedgerSummary, error) {
	return f.sum, nil
}

func ptr[T any](v T) *T { return &v }

func TestExportJobsXLSX(t *testing.T) {
	started := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)
	finishedID := uuid.New()
	ledger := &fakeLedger{
		jobs: []repository.JobRecord{
			{
				ID: finishedID, FileName: "reizen.csv", StartTime: started, Finished: true,
				FinishTime: &done, EntriesAdded: ptr(2), FilledSchema: ptr("GvbReisBestemmingDatumRaw"),
				ContentHash: ptr("00000000deadbeef"),
			},
			{ID: uuid.New(), FileName: "ritten.csv", StartTime: started.Add(time.Minute)},
		},
		sum: repository.LedgerSummary{
			Total: 3, Finished: 2, Unfinished: 1,
			Duplicates: []repository.DuplicateCompletion{{FileName: "twice.csv", Count: 2}},
		},
	}
	finished := true
	filter := repository.JobFilter{Finished: &finished, Limit: 10}

	data, err := NewService(ledger, nil).ExportJobsXLSX(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, filter, ledger.filter)

	x, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, []string{"Jobs", "Summary"}, x.GetSheetList())

	rows, err := x.GetRows("Jobs")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, jobHeaders, rows[0])
	assert.Equal(t, []string{
		finishedID.String(), "reizen.csv", "FINISHED", "2024-04-01 06:00:00", "2024-04-01 06:01:30",
		"2", "GvbReisBestemmingDatumRaw", "00000000deadbeef",
	}, rows[1])
	assert.Equal(t, "UNFINISHED", rows[2][2])
	assert.Equal(t, "ritten.csv", rows[2][1])

	summary, err := x.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Jobs", "3"}, summary[0])
	assert.Equal(t, []string{"Unfinished", "1"}, summary[2])
	assert.Equal(t, []string{"twice.csv", "2"}, summary[5])
}

func TestExportPropagatesLedgerError(t *testing.T) {
	_, err := NewService(&fakeLedger{err: errors.New("db down")}, nil).ExportJobsXLSX(context.Background(), repository.JobFilter{})
	require.Error(t, err)
}
