package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/gvb-ingest/internal/app"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	"github.com/joseph-ayodele/gvb-ingest/internal/ingest"
	"github.com/joseph-ayodele/gvb-ingest/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	local := flag.Bool("local", false, "use the local database profile")
	flag.Parse()

	profile := ""
	if *local {
		profile = common.ProfileLocal
	}
	cfg, err := common.LoadConfig(*configPath, profile)
	if err != nil {
		slog.Error("loading config", "err", err)
		os.Exit(2)
	}
	if err := cfg.Daemon.Validate(); err != nil {
		slog.Error("invalid daemon config", "err", err)
		os.Exit(2)
	}
	level, err := common.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logger, closeLog := common.SetupLogger(cfg.Log.File, level)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gvbd stopped", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *slog.Logger) error {
	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()
	if err := a.Migrate(ctx); err != nil {
		return err
	}

	var trigger <-chan struct{}
	if cfg.Daemon.Watch {
		trigger, err = ingest.WatchCache(ctx, ingest.WatchConfig{
			Dir:      a.Cache.Path(),
			Debounce: cfg.Daemon.Debounce,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("watch cache: %w", err)
		}
	}

	// gRPC server
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Daemon.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Daemon.GRPCAddr, err)
	}
	logger.Info("gRPC health serving", "addr", lis.Addr().String())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "err", err)
			stop()
		}
	}()

	d := server.NewDaemon(a, a.DB, hs, logger, server.DaemonOptions{
		Interval: cfg.Daemon.Interval,
		Trigger:  trigger,
	})
	d.Run(ctx)

	logger.Info("shutting down...")
	grpcServer.GracefulStop()
	logger.Info("stopped")
	return nil
}
