package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/gvb-ingest/internal/ingest"
	"github.com/joseph-ayodele/gvb-ingest/internal/remote"
)

// Runner performs the download and ingest steps of a cycle.
type Runner interface {
	Download(ctx context.Context) (remote.SyncStats, error)
	Ingest(ctx context.Context) (ingest.BatchStats, error)
}

type DaemonOptions struct {
	Interval    time.Duration
	PingTimeout time.Duration
	// Trigger, when set, runs an ingest-only cycle on every receive.
	Trigger <-chan struct{}
}

// Daemon runs download and ingest cycles on an interval and reports health
// through a gRPC health server.
type Daemon struct {
	runner Runner
	db     Pinger
	health *health.Server
	log    *slog.Logger
	opts   DaemonOptions
}

func NewDaemon(runner Runner, db Pinger, hs *health.Server, logger *slog.Logger, opts DaemonOptions) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	return &Daemon{runner: runner, db: db, health: hs, log: logger, opts: opts}
}

// Run reports NOT_SERVING until the first batch completes and then blocks,
// running cycles until ctx is done.
func (d *Daemon) Run(ctx context.Context) {
	d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	d.cycle(ctx, true)

	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
			d.cycle(ctx, true)
		case <-d.opts.Trigger:
			d.log.Info("new files in cache")
			d.cycle(ctx, false)
		}
	}
}

func (d *Daemon) cycle(ctx context.Context, download bool) {
	if download {
		// cached files are still ingested when the server is unreachable
		if _, err := d.runner.Download(ctx); err != nil {
			d.log.Error("download step failed", "err", err)
		}
	}

	_, batchErr := d.runner.Ingest(ctx)
	switch {
	case ctx.Err() != nil:
		return
	case ingest.IsBatchBusy(batchErr):
		d.log.Info("another process is running a batch")
	case batchErr != nil:
		d.log.Error("batch failed", "err", batchErr)
	}

	if err := PingDB(ctx, d.db, d.log, d.opts.PingTimeout); err != nil {
		d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	if batchErr == nil {
		d.setStatus(healthpb.HealthCheckResponse_SERVING)
	}
}

func (d *Daemon) setStatus(s healthpb.HealthCheckResponse_ServingStatus) {
	d.health.SetServingStatus("", s)
}
