package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

type Config struct {
	Driver           string
	DSN              string
	Host             string
	Port             int
	Name             string
	Username         string
	Password         string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	ConnectRetries   int
}

// ConfigFrom maps the application database settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		Host:             c.Host,
		Port:             c.Port,
		Name:             c.Name,
		Username:         c.Username,
		Password:         c.Password,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
		ConnectRetries:   c.ConnectRetries,
	}
}

// SQLiteDSN returns a modernc DSN for a database file with foreign keys on.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// URL returns the DSN, building it from the individual settings when no
// DSN is configured.
func (c Config) URL() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverPostgres, "":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:     "/" + c.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	case DriverSQLite:
		return SQLiteDSN(c.Name), nil
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		if c.DialTimeout > 0 {
			mc.Timeout = c.DialTimeout
		}
		return mc.FormatDSN(), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", c.Driver)
}

// DB bundles the ent SQL driver with the handles behind it.
type DB struct {
	Driver *entsql.Driver
	// Pool is set for postgres only.
	Pool *pgxpool.Pool

	name string
	log  *slog.Logger
}

// Dialect returns the ent dialect name.
func (db *DB) Dialect() string { return db.Driver.Dialect() }

// SQL returns the underlying *sql.DB.
func (db *DB) SQL() *sql.DB { return db.Driver.DB() }

// Open connects to the configured database, retrying with capped
// exponential backoff, and wraps the connection for ent.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn, err := cfg.URL()
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "database url", err)
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}

	backoff := 250 * time.Millisecond
	for attempt := 0; ; attempt++ {
		logger.Info("connecting to database", "driver", cfg.Driver, "attempt", attempt+1)
		db, err := open(ctx, cfg, dsn, logger)
		if err == nil {
			logger.Info("successfully connected to database", "driver", cfg.Driver)
			return db, nil
		}
		logger.Error("failed to connect to database", "driver", cfg.Driver, "attempt", attempt+1, "err", err)
		if attempt >= cfg.ConnectRetries {
			return nil, common.StorageFault("connect to database", err)
		}
		select {
		case <-ctx.Done():
			return nil, common.StorageFault("connect to database", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
}

func open(ctx context.Context, cfg Config, dsn string, logger *slog.Logger) (*DB, error) {
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	switch cfg.Driver {
	case DriverPostgres:
		pc, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		pc.MinConns = cfg.MinConns
		if cfg.MaxConnLifetime > 0 {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
		}
		if cfg.MaxConnIdleTime > 0 {
			pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "gvb-ingest"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
		}
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		// Wrap pool as *sql.DB for ent
		sqldb := stdlib.OpenDBFromPool(pool)
		return &DB{Driver: entsql.OpenDB(dialect.Postgres, sqldb), Pool: pool, name: cfg.Driver, log: logger}, nil

	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		if err := sqldb.PingContext(ctx); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		return &DB{Driver: entsql.OpenDB(dialect.SQLite, sqldb), name: cfg.Driver, log: logger}, nil

	case DriverMySQL:
		sqldb, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		if cfg.MaxConns > 0 {
			sqldb.SetMaxOpenConns(int(cfg.MaxConns))
		}
		sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
		sqldb.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
		if err := sqldb.PingContext(ctx); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		return &DB{Driver: entsql.OpenDB(dialect.MySQL, sqldb), name: cfg.Driver, log: logger}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Close closes the database connections gracefully
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.log.Info("closing database connections", "driver", db.name)
	err := db.Driver.Close()
	if db.Pool != nil {
		db.Pool.Close()
	}
	if err != nil {
		db.log.Error("failed to close database", "err", err)
		return err
	}
	db.log.Info("database connections closed")
	return nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	db.log.Debug("pinging database")
	if err := db.SQL().PingContext(ctx); err != nil {
		db.log.Error("database ping failed", "err", err)
		return common.StorageFault("ping database", err)
	}
	db.log.Debug("database ping successful")
	return nil
}
