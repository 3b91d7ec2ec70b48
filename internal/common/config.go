package common

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/gvb-ingest/constants"
)

//go:embed config.schema.json
var configSchema []byte

// Database profiles carried over from the deployment setups.
const (
	ProfileDocker = "docker"
	ProfileLocal  = "local"
	ProfileTest   = "test"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	FTP       FTPConfig       `yaml:"ftp"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Redis     RedisConfig     `yaml:"redis"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseProfile is one named set of connection settings.
type DatabaseProfile struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DatabaseProfile `yaml:",inline"`

	Profile  string                     `yaml:"profile"`
	Profiles map[string]DatabaseProfile `yaml:"profiles"`

	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	ConnectRetries   int           `yaml:"connect_retries"`
}

// FTPConfig holds the remote file server settings
type FTPConfig struct {
	URL                   string        `yaml:"url"`
	Port                  int           `yaml:"port"`
	Username              string        `yaml:"username"`
	Password              string        `yaml:"password"`
	Root                  string        `yaml:"root"`
	KnownHosts            string        `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key"`
	Timeout               time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// IngestConfig tunes the orchestrator and the bulk writer
type IngestConfig struct {
	Delimiter   string `yaml:"delimiter"`
	BatchSize   int    `yaml:"batch_size"`
	UseCopy     bool   `yaml:"use_copy"`
	SampleLimit int    `yaml:"sample_limit"`
}

// RedisConfig enables the cross-process batch lock when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lock_key"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type DaemonConfig struct {
	Interval time.Duration `yaml:"interval"`
	GRPCAddr string        `yaml:"grpc_addr"`
	// Watch also runs an ingest when a new file lands in the cache.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Telemetry exporters
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TelemetryConfig selects where batch traces and metrics go.
type TelemetryConfig struct {
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"service_name"`
	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// File receives stdout exporter output; empty means stderr.
	File           string        `yaml:"file"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// DefaultConfig returns the settings used when neither a file nor the
// environment says otherwise.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DatabaseProfile: DatabaseProfile{Driver: "postgres", Port: 5432},
			Profile:         ProfileDocker,
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
			ConnectRetries:  5,
		},
		FTP: FTPConfig{
			URL:     "ftp.gvb.nl",
			Port:    22,
			Root:    "/",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{Dir: "./cache"},
		Log:   LogConfig{File: "gvbScraperLog.log", Level: "info"},
		Ingest: IngestConfig{
			Delimiter: ";",
			BatchSize: 500,
		},
		Redis: RedisConfig{
			LockKey: "gvb-ingest:batch",
			LockTTL: 30 * time.Minute,
		},
		Daemon: DaemonConfig{
			Interval: time.Hour,
			GRPCAddr: ":8090",
			Debounce: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:       ExporterNone,
			ServiceName:    "gvb-ingest",
			MetricInterval: time.Minute,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, a .env file and the environment, in increasing precedence.
// profile selects a database profile; empty means the file's choice.
func LoadConfig(path, profile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, NewAppError(CodeConfig, "load .env", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(CodeConfig, "read config file", err)
		}
		if err := ParseConfig(data, cfg); err != nil {
			return nil, err
		}
	}

	if p := getEnv("GVB_DATABASE_PROFILE", profile); p != "" {
		cfg.Database.Profile = p
	}
	if err := cfg.Database.applyProfile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// ParseConfig validates YAML data against the config schema and decodes it
// over cfg.
func ParseConfig(data []byte, cfg *Config) error {
	if err := validateAgainstSchema(data); err != nil {
		return NewAppError(CodeConfig, "invalid config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return NewAppError(CodeConfig, "decode config file", err)
	}
	return nil
}

func validateAgainstSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	// round trip through JSON so the validator sees JSON types
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return schema.Validate(v)
}

// applyProfile overlays the selected profile's non-empty settings.
func (d *DatabaseConfig) applyProfile() error {
	if d.Profile == "" || len(d.Profiles) == 0 {
		return nil
	}
	p, ok := d.Profiles[d.Profile]
	if !ok {
		return NewAppError(CodeConfig, fmt.Sprintf("unknown database profile %q", d.Profile), ErrInvalidInput)
	}
	if p.Driver != "" {
		d.Driver = p.Driver
	}
	if p.DSN != "" {
		d.DSN = p.DSN
	}
	if p.Host != "" {
		d.Host = p.Host
	}
	if p.Port != 0 {
		d.Port = p.Port
	}
	if p.Name != "" {
		d.Name = p.Name
	}
	if p.Username != "" {
		d.Username = p.Username
	}
	if p.Password != "" {
		d.Password = p.Password
	}
	return nil
}

func (c *Config) applyEnv() {
	db := &c.Database
	db.Driver = getEnv("GVB_DATABASE_DRIVER", db.Driver)
	db.DSN = getEnv("GVB_DATABASE_DSN", db.DSN)
	db.Host = getEnv("GVB_DATABASE_HOST", db.Host)
	db.Port = getEnvAsInt("GVB_DATABASE_PORT", db.Port)
	db.Name = getEnv("GVB_DATABASE_NAME", db.Name)
	db.Username = getEnv("GVB_DATABASE_USERNAME", db.Username)
	db.Password = getEnv("GVB_DATABASE_PASSWORD", db.Password)
	db.MaxConns = getEnvAsInt32("GVB_DATABASE_MAX_CONNS", db.MaxConns)
	db.StatementTimeout = getEnvAsDuration("GVB_DATABASE_STATEMENT_TIMEOUT", db.StatementTimeout)

	c.FTP.URL = getEnv("GVB_FTP_URL", c.FTP.URL)
	c.FTP.Port = getEnvAsInt("GVB_FTP_PORT", c.FTP.Port)
	c.FTP.Username = getEnv("GVB_FTP_USERNAME", c.FTP.Username)
	c.FTP.Password = getEnv("GVB_FTP_PASSWORD", c.FTP.Password)
	c.FTP.KnownHosts = getEnv("GVB_FTP_KNOWN_HOSTS", c.FTP.KnownHosts)
	c.FTP.InsecureIgnoreHostKey = getEnvAsBool("GVB_FTP_INSECURE", c.FTP.InsecureIgnoreHostKey)

	c.Cache.Dir = getEnv("GVB_CACHE_DIR", c.Cache.Dir)
	c.Log.File = getEnv("GVB_LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("GVB_LOG_LEVEL", c.Log.Level)

	c.Ingest.BatchSize = getEnvAsInt("GVB_INGEST_BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.UseCopy = getEnvAsBool("GVB_INGEST_USE_COPY", c.Ingest.UseCopy)

	c.Redis.Addr = getEnv("GVB_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("GVB_REDIS_PASSWORD", c.Redis.Password)

	c.Daemon.Interval = getEnvAsDuration("GVB_DAEMON_INTERVAL", c.Daemon.Interval)
	c.Daemon.GRPCAddr = getEnv("GVB_GRPC_ADDR", c.Daemon.GRPCAddr)
	c.Daemon.Watch = getEnvAsBool("GVB_DAEMON_WATCH", c.Daemon.Watch)

	c.Telemetry.Exporter = getEnv("GVB_OTEL_EXPORTER", c.Telemetry.Exporter)
	c.Telemetry.Endpoint = getEnv("GVB_OTEL_ENDPOINT", c.Telemetry.Endpoint)
	c.Telemetry.Insecure = getEnvAsBool("GVB_OTEL_INSECURE", c.Telemetry.Insecure)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	v := NewValidator()
	db := c.Database
	v.Field("database.driver", db.Driver, OneOf("postgres", "sqlite", "mysql"))
	if db.DSN == "" {
		v.Field("database.name", db.Name, Required)
		if db.Driver != "sqlite" {
			v.Field("database.host", db.Host, Required).
				Field("database.port", db.Port, InRange(1, 65535)).
				Field("database.username", db.Username, Required)
		}
	}
	v.Field("cache.dir", c.Cache.Dir, Required).
		Field("log.level", c.Log.Level, OneOf("debug", "info", "warn", "error", "critical")).
		Field("ingest.delimiter", c.Ingest.Delimiter, SingleRune).
		Field("ingest.batch_size", c.Ingest.BatchSize, Positive)
	if c.Redis.Addr != "" {
		v.Field("redis.lock_ttl", c.Redis.LockTTL, Positive)
	}
	v.Field("telemetry.exporter", c.Telemetry.Exporter, OneOf(ExporterNone, ExporterStdout, ExporterOTLP))
	if c.Telemetry.Exporter != ExporterNone {
		v.Field("telemetry.service_name", c.Telemetry.ServiceName, Required).
			Field("telemetry.metric_interval", c.Telemetry.MetricInterval, Positive)
	}
	return ValidateAndReturnError(v)
}

// Validate checks the settings needed to reach the remote server.
func (f FTPConfig) Validate() error {
	v := NewValidator().
		Field("ftp.url", f.URL, Required).
		Field("ftp.port", f.Port, InRange(1, 65535)).
		Field("ftp.username", f.Username, Required)
	if !f.InsecureIgnoreHostKey {
		v.Field("ftp.known_hosts", f.KnownHosts, Required)
	}
	return ValidateAndReturnError(v)
}

// Validate checks the daemon settings.
func (d DaemonConfig) Validate() error {
	v := NewValidator().
		Field("daemon.interval", d.Interval, Positive).
		Field("daemon.grpc_addr", d.GRPCAddr, Required)
	return ValidateAndReturnError(v)
}

// DelimiterRune returns the field separator of source files.
func (i IngestConfig) DelimiterRune() rune {
	if r, size := utf8.DecodeRuneInString(i.Delimiter); size > 0 && r != utf8.RuneError {
		return r
	}
	return constants.DefaultDelimiter
}
