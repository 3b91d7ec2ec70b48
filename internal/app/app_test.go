package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

const herkomstUur = "Datum;UurgroepOmschrijving (van vertrek);VertrekHalteCode;VertrekHalteNaam;VertrekLat;VertrekLon;AantalReizen\n" +
	"2024-04-01;07:00 - 08:00;04088;Centraal Station;52,3791;4,9003;1200\n" +
	"2024-04-01;08:00 - 09:00;04088;Centraal Station;52,3791;4,9003;1500\n"

type dirSource map[string]string

func (d dirSource) List(context.Context) ([]string, error) {
	var out []string
	for p := range d {
		out = append(out, p)
	}
	return out, nil
}

func (d dirSource) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(d[p])), nil
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "gvb.db")
	cfg.Cache.Dir = t.TempDir()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(testConfig(t), quietLogger(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Migrate(ctx))

	sync, err := a.Sync(ctx, dirSource{"/2024/herkomst_uur.csv": herkomstUur})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sync.Downloaded)

	stats, err := a.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.Loaded)
	assert.Equal(t, "GvbReisHerkomstUurRaw", stats.Results[0].RecordType)
	assert.Equal(t, 2, stats.RowsAdded)

	again, err := a.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), again.Skipped)

	reports, err := a.Reports(ctx)
	require.NoError(t, err)
	data, err := reports.ExportJobsXLSX(ctx, repository.JobFilter{})
	require.NoError(t, err)
	x, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("Jobs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "herkomst_uur.csv", rows[1][1])
	assert.Equal(t, "FINISHED", rows[1][2])
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.BatchSize = 0
	_, err := New(cfg, quietLogger(), Options{})
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}

func TestNewRejectsMissingCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "missing")
	_, err := New(cfg, quietLogger(), Options{})
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))

	_, statErr := os.Stat(cfg.Cache.Dir)
	assert.True(t, os.IsNotExist(statErr), "the cache directory is not created implicitly")
}

func TestIngestReportsToTelemetryExporter(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Telemetry.Exporter = common.ExporterStdout
	cfg.Telemetry.File = filepath.Join(t.TempDir(), "otel.jsonl")
	a, err := New(cfg, quietLogger(), Options{})
	require.NoError(t, err)

	require.NoError(t, a.Migrate(ctx))
	_, err = a.Sync(ctx, dirSource{"/herkomst_uur.csv": herkomstUur})
	require.NoError(t, err)
	stats, err := a.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.Loaded)

	// spans and metrics are flushed on Close
	require.NoError(t, a.Close())
	data, err := os.ReadFile(cfg.Telemetry.File)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"Name":"gvb.file"`)
	assert.Contains(t, out, `"Name":"gvb.batch"`)
	assert.Contains(t, out, "gvb.ingest.rows")
	assert.Contains(t, out, "GvbReisHerkomstUurRaw")
}

func TestMigrateLogsOnce(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(testConfig(t), slog.New(slog.NewTextHandler(&logs, nil)), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Migrate(context.Background()))
	assert.Equal(t, 1, strings.Count(logs.String(), "schema up to date"))
}
