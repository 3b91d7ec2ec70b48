package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	"github.com/joseph-ayodele/gvb-ingest/internal/cache"
)

type WatchConfig struct {
	Dir      string        // cache directory (not recursive)
	Debounce time.Duration // coalesce bursts of events into one signal
	Logger   *slog.Logger
}

// WatchCache signals on the returned channel when ingestible files appear in
// the cache directory. Signals are coalesced; a slow reader misses none of
// the files because each signal means "run a batch".
func WatchCache(ctx context.Context, cfg WatchConfig) (<-chan struct{}, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: no directory")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("failed to create fsnotify watcher", "err", err)
		return nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		_ = w.Close()
		log.Error("failed to watch cache directory", "dir", cfg.Dir, "err", err)
		return nil, err
	}

	out := make(chan struct{}, 1)
	notify := func() {
		select {
		case out <- struct{}{}:
		default:
		}
	}

	go func() {
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			if err := w.Close(); err != nil {
				log.Warn("closing cache watcher", "err", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !ingestible(e) {
					continue
				}
				log.Debug("cache file event", "file", filepath.Base(e.Name), "op", e.Op.String())
				if cfg.Debounce <= 0 {
					notify()
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, notify)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watcher error", "err", err)
			}
		}
	}()
	return out, nil
}

// ingestible matches create and rename-into events for files ListFiles
// would return. Partial downloads are hidden and never match.
func ingestible(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return false
	}
	return !cache.IsHidden(e.Name) && constants.IsAllowedExt(filepath.Ext(e.Name))
}
