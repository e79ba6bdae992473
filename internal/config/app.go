package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// AppConfig holds all loansim runtime configuration.
type AppConfig struct {
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Workers    WorkerConfig     `yaml:"workers"`
	Projection ProjectionConfig `yaml:"projection"`
	Polling    PollingConfig    `yaml:"polling"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig selects the dashboard cache backend.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisDB   int           `yaml:"redis_db,omitempty"`
}

// WorkerConfig sizes the simulation compute pool.
type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// ProjectionConfig bounds projection length.
type ProjectionConfig struct {
	MaxMonths int `yaml:"max_months"`
}

// PollingConfig controls status poll backoff.
type PollingConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultAppConfig returns the default configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Store: StoreConfig{Path: filepath.Join(DataDir(), "loansim.db")},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     60 * time.Second,
		},
		Workers: WorkerConfig{
			Count:     2,
			QueueSize: 64,
		},
		Projection: ProjectionConfig{MaxMonths: 600},
		Polling: PollingConfig{
			InitialInterval: 1500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "loansim")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "loansim")
}

// NewLogger builds the process slog.Logger from the log section.
func (c LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
