// Package config defines process configuration for the server, the scorer
// device and the simulator, and how it is loaded.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Config contains process configuration. Each binary reads the keys it needs.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the server's score record store file.
	DBPath string `koanf:"db_path"`

	// UnstartedLast orders teams with no scores after every started team.
	UnstartedLast bool `koanf:"leaderboard_unstarted_last"`

	// ServerURL is the base URL devices and the simulator talk to.
	ServerURL string `koanf:"server_url"`

	// PendingDBPath is the device's pending queue file.
	PendingDBPath string `koanf:"pending_db_path"`

	// TeamID preselects the device's team.
	TeamID string `koanf:"team_id"`

	// RequestTimeout bounds each request to the server.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ProbeInterval is how often the device probes server reachability.
	ProbeInterval time.Duration `koanf:"probe_interval"`

	// SyncedTTL is how long the synced indicator stays up after a drain.
	SyncedTTL time.Duration `koanf:"synced_ttl"`

	// WorkerCount sets the number of delivery workers on the device.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory intent queue on the device.
	QueueSize int `koanf:"queue_size"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":8080",
		DBPath:         "scramble.db",
		ServerURL:      "http://localhost:8080",
		PendingDBPath:  "pending.db",
		RequestTimeout: 10 * time.Second,
		ProbeInterval:  5 * time.Second,
		SyncedTTL:      3 * time.Second,
		WorkerCount:    4,
		QueueSize:      256,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log_level %q", c.LogLevel)
	}
	switch {
	case c.Addr == "":
		return errors.Wrap(ErrInvalidConfig, "addr must not be empty")
	case c.DBPath == "":
		return errors.Wrap(ErrInvalidConfig, "db_path must not be empty")
	case c.ServerURL == "":
		return errors.Wrap(ErrInvalidConfig, "server_url must not be empty")
	case c.PendingDBPath == "":
		return errors.Wrap(ErrInvalidConfig, "pending_db_path must not be empty")
	case c.RequestTimeout <= 0:
		return errors.Wrapf(ErrInvalidConfig, "request_timeout %s must be positive", c.RequestTimeout)
	case c.ProbeInterval <= 0:
		return errors.Wrapf(ErrInvalidConfig, "probe_interval %s must be positive", c.ProbeInterval)
	case c.SyncedTTL <= 0:
		return errors.Wrapf(ErrInvalidConfig, "synced_ttl %s must be positive", c.SyncedTTL)
	case c.WorkerCount < 1:
		return errors.Wrapf(ErrInvalidConfig, "worker_count %d must be at least 1", c.WorkerCount)
	case c.QueueSize < 1:
		return errors.Wrapf(ErrInvalidConfig, "queue_size %d must be at least 1", c.QueueSize)
	}
	return nil
}
