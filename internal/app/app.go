// Package app wires the ingestion components from a Config.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/gvb-ingest/internal/cache"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/export"
	"github.com/joseph-ayodele/gvb-ingest/internal/ingest"
	"github.com/joseph-ayodele/gvb-ingest/internal/lock"
	"github.com/joseph-ayodele/gvb-ingest/internal/observability"
	"github.com/joseph-ayodele/gvb-ingest/internal/registry"
	"github.com/joseph-ayodele/gvb-ingest/internal/remote"
	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

type Options struct {
	// SampleLimit > 0 restricts downloads and batches to N files.
	SampleLimit int
}

// App holds the components shared by the CLI and the daemon. The database
// side is opened on demand by OpenDB.
type App struct {
	Config   *common.Config
	Log      *slog.Logger
	Cache    *cache.Dir
	Registry *registry.Registry

	DB           *repository.DB
	Ledger       repository.JobLedger
	Orchestrator *ingest.Orchestrator

	opts      Options
	closeLock func() error
	telemetry *observability.Providers
}

// New validates cfg and checks that the cache directory is usable.
func New(cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "cache directory", err)
	}
	if err := dir.Check(); err != nil {
		logger.Error("cache directory not usable", "dir", dir.Path(), "err", err)
		return nil, common.NewAppError(common.CodeConfig, "cache directory not usable", err)
	}
	return &App{
		Config:   cfg,
		Log:      logger,
		Cache:    dir,
		Registry: registry.Default(),
		opts:     opts,
	}, nil
}

// OpenDB connects to the database and builds the ledger and orchestrator,
// reporting to the telemetry exporter from the config.
func (a *App) OpenDB(ctx context.Context) error {
	if a.DB != nil {
		return nil
	}
	if a.telemetry == nil {
		tel, err := observability.Setup(ctx, a.Config.Telemetry, a.Log)
		if err != nil {
			return err
		}
		a.telemetry = tel
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(a.Config.Database), a.Log)
	if err != nil {
		return err
	}
	a.DB = db
	a.Ledger = repository.NewJobLedger(db, a.Log)

	locker, closeLock := lock.New(a.Config.Redis, a.Log)
	a.closeLock = closeLock
	lockKey := ""
	if a.Config.Redis.Addr != "" {
		lockKey = a.Config.Redis.LockKey
	}

	writer := repository.NewRowWriter(db, a.Log, repository.RowWriterOptions{
		BatchSize: a.Config.Ingest.BatchSize,
		UseCopy:   a.Config.Ingest.UseCopy,
	})
	a.Orchestrator = ingest.NewOrchestrator(ingest.Deps{
		Files:     a.Cache,
		Ledger:    a.Ledger,
		Matcher:   registry.NewMatcher(a.Registry, a.Log),
		Writer:    writer,
		Locker:    locker,
		Telemetry: ingest.NewTelemetry(a.telemetry.TracerProvider, a.telemetry.MeterProvider),
		Logger:    a.Log,
	}, ingest.Options{
		Delimiter:   a.Config.Ingest.DelimiterRune(),
		SampleLimit: a.opts.SampleLimit,
		LockKey:     lockKey,
	})
	return nil
}

// Migrate creates the ledger and every registered raw table.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.OpenDB(ctx); err != nil {
		return err
	}
	return repository.Migrate(ctx, a.DB, registry.Schemas()...)
}

// Download mirrors new files from the remote server into the cache.
func (a *App) Download(ctx context.Context) (remote.SyncStats, error) {
	src, err := remote.DialSFTP(ctx, a.Config.FTP, a.Log)
	if err != nil {
		return remote.SyncStats{}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.Log.Warn("closing sftp connection", "err", err)
		}
	}()
	return a.Sync(ctx, src)
}

// Sync mirrors src into the cache.
func (a *App) Sync(ctx context.Context, src remote.Source) (remote.SyncStats, error) {
	d := remote.NewDownloader(src, a.Cache, a.Log, remote.DownloadOptions{SampleLimit: a.opts.SampleLimit})
	return d.Sync(ctx)
}

// Ingest runs one batch over the cache.
func (a *App) Ingest(ctx context.Context) (ingest.BatchStats, error) {
	if err := a.OpenDB(ctx); err != nil {
		return ingest.BatchStats{}, err
	}
	return a.Orchestrator.RunBatch(ctx)
}

// Reports returns the ledger report service.
func (a *App) Reports(ctx context.Context) (*export.Service, error) {
	if err := a.OpenDB(ctx); err != nil {
		return nil, err
	}
	return export.NewService(a.Ledger, a.Log), nil
}

func (a *App) Close() error {
	var errs []error
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	if a.closeLock != nil {
		errs = append(errs, a.closeLock())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
