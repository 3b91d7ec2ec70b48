package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/gvb-ingest/internal/cache"
)

// memSource serves files from a map; paths in broken fail to open.
type memSource struct {
	files  map[string]string
	order  []string
	broken map[string]bool
	opened []string
}

func (m *memSource) List(context.Context) ([]string, error) { return m.order, nil }

func (m *memSource) Open(_ context.Context, p string) (io.ReadCloser, error) {
	m.opened = append(m.opened, p)
	if m.broken[p] {
		return nil, errors.New("connection lost")
	}
	return io.NopCloser(strings.NewReader(m.files[p])), nil
}

func newMemSource(files map[string]string, order ...string) *memSource {
	return &memSource{files: files, order: order, broken: map[string]bool{}}
}

func newCache(t *testing.T) *cache.Dir {
	t.Helper()
	d, err := cache.New(t.TempDir())
	require.NoError(t, err)
	return d
}

func TestSyncDownloadsNewFiles(t *testing.T) {
	c := newCache(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Path(), "old.csv"), []byte("cached"), 0o644))

	src := newMemSource(map[string]string{
		"/2024/old.csv":   "remote copy",
		"/2024/new.csv":   "x;y\n1;2\n",
		"/2024/notes.pdf": "%PDF",
		"/2025/more.txt":  "x;y\n",
	}, "/2024/new.csv", "/2024/notes.pdf", "/2024/old.csv", "/2025/more.txt")

	stats, err := NewDownloader(src, c, nil, DownloadOptions{}).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Listed: 4, Present: 1, Downloaded: 2, Ignored: 1, Bytes: 12}, stats)
	assert.Equal(t, []string{"/2024/new.csv", "/2025/more.txt"}, src.opened)

	data, err := os.ReadFile(filepath.Join(c.Path(), "old.csv"))
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data), "cached files are never overwritten")

	names, err := c.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"more.txt", "new.csv", "old.csv"}, names)
}

func TestSyncCountsFailuresAndContinues(t *testing.T) {
	c := newCache(t)
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	src := newMemSource(map[string]string{"/b.csv": "x\n"}, "/a.csv", `/evil\x.csv`, "/b.csv")
	src.broken["/a.csv"] = true

	stats, err := NewDownloader(src, c, log, DownloadOptions{}).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.Failed)
	assert.Equal(t, uint32(1), stats.Downloaded)
	assert.Contains(t, logs.String(), "download failed")
	assert.Contains(t, logs.String(), "escapes the cache directory")

	has, err := c.Has("a.csv")
	require.NoError(t, err)
	assert.False(t, has, "a failed download leaves nothing behind")
}

func TestSyncSampleLimit(t *testing.T) {
	c := newCache(t)
	src := newMemSource(map[string]string{}, "/1.csv", "/2.csv", "/3.csv")

	stats, err := NewDownloader(src, c, nil, DownloadOptions{SampleLimit: 2}).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.Downloaded)
	assert.Len(t, src.opened, 2)
}

type failingList struct{ memSource }

func (failingList) List(context.Context) ([]string, error) { return nil, errors.New("no route to host") }

func TestSyncListFailure(t *testing.T) {
	_, err := NewDownloader(&failingList{}, newCache(t), nil, DownloadOptions{}).Sync(context.Background())
	require.Error(t, err)
}

func TestSyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := newMemSource(map[string]string{}, "/1.csv")
	_, err := NewDownloader(src, newCache(t), nil, DownloadOptions{}).Sync(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.opened)
}
