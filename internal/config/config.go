package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gxo-labs/reducto/internal/retry"
)

// Default values applied by the getters when a field is left out.
const (
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultHTTPAddr   = ":8080"
	DefaultNATSURL    = "nats://127.0.0.1:4222"
	DefaultTableName  = "reducto_snapshots"
	defaultRetryDelay = 200 * time.Millisecond
)

// Config is the top-level structure of a reducto YAML document. It names
// the application to run, how the store is observed and persisted, and an
// optional script of actions to replay.
type Config struct {
	SchemaVersion string             `yaml:"schemaVersion"`
	Name          string             `yaml:"name"`
	App           string             `yaml:"app"`
	Log           *LogConfig         `yaml:"log,omitempty"`
	StatePolicy   *StatePolicy       `yaml:"state_policy,omitempty"`
	Persistence   *PersistenceConfig `yaml:"persistence,omitempty"`
	HTTP          *HTTPConfig        `yaml:"http,omitempty"`
	NATS          *NATSConfig        `yaml:"nats,omitempty"`
	Actions       []ActionSpec       `yaml:"actions,omitempty"`

	// FilePath is the source of the document, for error messages. Not parsed.
	FilePath string `yaml:"-"`
}

// LogConfig selects the level and handler of the default logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// PersistenceConfig selects the snapshot repository.
type PersistenceConfig struct {
	Driver   Driver       `yaml:"driver"`
	DSN      string       `yaml:"dsn,omitempty"`
	Table    string       `yaml:"table,omitempty"`
	Region   string       `yaml:"region,omitempty"`
	Endpoint string       `yaml:"endpoint,omitempty"` // DynamoDB endpoint override, e.g. DynamoDB Local
	Restore  bool         `yaml:"restore,omitempty"`
	Retry    *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig defines how snapshot saves are retried.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
}

// HTTPConfig enables the HTTP API.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// NATSConfig enables the NATS Streaming action consumer.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url,omitempty"`
	Subject   string `yaml:"subject"`
	Durable   string `yaml:"durable,omitempty"`
	Queue     string `yaml:"queue,omitempty"`
}

// ActionSpec is one scripted action. Payload is free-form YAML handed to the
// application's decoder as JSON.
type ActionSpec struct {
	Kind    string      `yaml:"kind"`
	Payload interface{} `yaml:"payload,omitempty"`
}

// PayloadJSON returns the payload encoded as JSON, or nil when absent.
func (a ActionSpec) PayloadJSON() (json.RawMessage, error) {
	if a.Payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("action '%s': payload cannot be encoded as JSON: %w", a.Kind, err)
	}
	return raw, nil
}

// GetLogLevel returns the configured level or "info".
func (c *Config) GetLogLevel() string {
	if c.Log != nil && c.Log.Level != "" {
		return c.Log.Level
	}
	return DefaultLogLevel
}

// GetLogFormat returns the configured format or "text".
func (c *Config) GetLogFormat() string {
	if c.Log != nil && c.Log.Format != "" {
		return c.Log.Format
	}
	return DefaultLogFormat
}

// GetAccessMode returns the configured state access mode or "shared".
func (c *Config) GetAccessMode() StateAccessMode {
	if c.StatePolicy != nil && c.StatePolicy.AccessMode != "" {
		return c.StatePolicy.AccessMode
	}
	return StateAccessShared
}

// GetDriver returns the persistence driver, DriverNone when unset.
func (c *Config) GetDriver() Driver {
	if c.Persistence != nil && c.Persistence.Driver != "" {
		return c.Persistence.Driver
	}
	return DriverNone
}

// GetTable returns the snapshot table name or the default.
func (p *PersistenceConfig) GetTable() string {
	if p != nil && p.Table != "" {
		return p.Table
	}
	return DefaultTableName
}

// GetRetry converts the retry block into a retry.Config. Without a block a
// save is tried three times with a 200ms doubling delay.
func (p *PersistenceConfig) GetRetry() retry.Config {
	cfg := retry.Config{Attempts: 3, Delay: defaultRetryDelay, BackoffFactor: 2.0}
	if p == nil || p.Retry == nil {
		return cfg
	}
	r := p.Retry
	if r.Attempts >= 1 {
		cfg.Attempts = r.Attempts
	}
	if d, err := time.ParseDuration(r.Delay); err == nil && d >= 0 {
		cfg.Delay = d
	}
	if d, err := time.ParseDuration(r.MaxDelay); err == nil && d >= 0 {
		cfg.MaxDelay = d
	}
	if r.BackoffFactor != nil && *r.BackoffFactor >= 1.0 {
		cfg.BackoffFactor = *r.BackoffFactor
	}
	if r.Jitter != nil {
		cfg.Jitter = *r.Jitter
	}
	return cfg
}

// GetAddr returns the listen address or ":8080".
func (h *HTTPConfig) GetAddr() string {
	if h != nil && h.Addr != "" {
		return h.Addr
	}
	return DefaultHTTPAddr
}

// GetURL returns the NATS server URL or the local default.
func (n *NATSConfig) GetURL() string {
	if n != nil && n.URL != "" {
		return n.URL
	}
	return DefaultNATSURL
}
