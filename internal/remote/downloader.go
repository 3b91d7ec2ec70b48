package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	"github.com/joseph-ayodele/gvb-ingest/internal/cache"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// Cache is where downloaded files are kept.
type Cache interface {
	Has(name string) (bool, error)
	Store(name string, r io.Reader) (int64, error)
}

type DownloadOptions struct {
	// SampleLimit > 0 downloads at most that many new files.
	SampleLimit int
}

// SyncStats summarizes a download run.
type SyncStats struct {
	Listed     uint32
	Present    uint32 // already cached
	Downloaded uint32
	Ignored    uint32 // extension not ingestible
	Failed     uint32
	Bytes      int64
}

// Downloader mirrors new remote files into the cache, keyed by base name.
type Downloader struct {
	src   Source
	cache Cache
	log   *slog.Logger
	opts  DownloadOptions
}

func NewDownloader(src Source, c Cache, logger *slog.Logger, opts DownloadOptions) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{src: src, cache: c, log: logger, opts: opts}
}

// Sync fetches every remote file whose base name is not cached yet. A failed
// file is logged and counted; only a failed listing or a cancelled context
// is returned as an error.
func (d *Downloader) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	start := time.Now()

	paths, err := d.src.List(ctx)
	if err != nil {
		d.log.Error("remote listing failed", "err", err)
		return stats, err
	}
	stats.Listed = uint32(len(paths))

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if d.opts.SampleLimit > 0 && int(stats.Downloaded) >= d.opts.SampleLimit {
			d.log.Info("sample limit reached", "limit", d.opts.SampleLimit)
			break
		}

		name := path.Base(p)
		log := d.log.With("remote", p, "file", name)
		if !constants.IsAllowedExt(path.Ext(name)) {
			stats.Ignored++
			log.Debug("not an ingestible file")
			continue
		}

		has, err := d.cache.Has(name)
		if errors.Is(err, cache.ErrOutsideCache) {
			stats.Failed++
			log.Log(ctx, common.LevelCritical, "remote file name escapes the cache directory", "err", err)
			continue
		}
		if err != nil {
			stats.Failed++
			log.Error("cache lookup failed", "err", err)
			continue
		}
		if has {
			stats.Present++
			continue
		}

		n, err := d.fetch(ctx, p, name)
		if err != nil {
			stats.Failed++
			log.Error("download failed", "err", err)
			continue
		}
		stats.Downloaded++
		stats.Bytes += n
		log.Info("downloaded", "bytes", n)
	}

	d.log.Info("sync finished",
		"listed", stats.Listed,
		"downloaded", stats.Downloaded,
		"present", stats.Present,
		"failed", stats.Failed,
		"took", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

func (d *Downloader) fetch(ctx context.Context, remotePath, name string) (int64, error) {
	rc, err := d.src.Open(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return d.cache.Store(name, rc)
}
