package server

import (
	"context"
	"log/slog"
	"time"
)

// Pinger is a database that can report its health.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db Pinger, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := db.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "err", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
