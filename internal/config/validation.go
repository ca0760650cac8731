package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// nameRegex matches store and app names.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// identifierRegex matches SQL table names we are willing to interpolate.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}}

// Validate performs the logical checks a JSON schema cannot express and
// returns every problem found.
func Validate(c *Config) []error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, reductoerrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	if c.Name == "" {
		add("'name' is required")
	} else if !nameRegex.MatchString(c.Name) {
		add("'name' contains invalid characters (allowed: alphanumeric, underscore, hyphen)")
	}
	if c.App == "" {
		add("'app' is required")
	}

	if c.Log != nil {
		if _, ok := logLevels[strings.ToLower(c.Log.Level)]; c.Log.Level != "" && !ok {
			add("log has invalid level: '%s'", c.Log.Level)
		}
		if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
			add("log has invalid format: '%s'", c.Log.Format)
		}
	}

	if c.StatePolicy != nil {
		mode := c.StatePolicy.AccessMode
		if mode != "" && mode != StateAccessShared && mode != StateAccessDeepCopy {
			add("state_policy has invalid access_mode: '%s'", mode)
		}
	}

	if p := c.Persistence; p != nil {
		errs = append(errs, validatePersistence(p)...)
	}

	if c.NATS != nil {
		if c.NATS.ClusterID == "" {
			add("nats: 'cluster_id' is required")
		}
		if c.NATS.ClientID == "" {
			add("nats: 'client_id' is required")
		}
		if c.NATS.Subject == "" {
			add("nats: 'subject' is required")
		}
		if c.NATS.Queue != "" && c.NATS.Durable == "" {
			add("nats: 'durable' is required when 'queue' is set")
		}
	}

	for i, a := range c.Actions {
		if a.Kind == "" {
			add("action %d: 'kind' is required", i)
		}
		if _, err := a.PayloadJSON(); err != nil {
			add("action %d: %v", i, err)
		}
	}
	return errs
}

func validatePersistence(p *PersistenceConfig) []error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, reductoerrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	switch p.Driver {
	case DriverNone, DriverMemory:
	case DriverPostgres:
		if p.DSN == "" {
			add("persistence: 'dsn' is required for driver 'postgres'")
		}
		if p.Table != "" && !identifierRegex.MatchString(p.Table) {
			add("persistence: 'table' ('%s') is not a valid SQL identifier", p.Table)
		}
	case DriverDynamoDB:
		if p.Table == "" {
			add("persistence: 'table' is required for driver 'dynamodb'")
		}
	default:
		add("persistence: unknown driver '%s'", p.Driver)
	}
	if p.Restore && (p.Driver == DriverNone || p.Driver == "") {
		add("persistence: 'restore' needs a driver other than 'none'")
	}

	if r := p.Retry; r != nil {
		if r.Attempts < 1 {
			add("persistence: 'retry.attempts' must be at least 1")
		}
		var base time.Duration
		var delayErr error
		if r.Delay != "" {
			base, delayErr = time.ParseDuration(r.Delay)
			if delayErr != nil {
				add("persistence: invalid format for 'retry.delay': %v", delayErr)
			} else if base < 0 {
				add("persistence: 'retry.delay' cannot be negative")
			}
		}
		if r.MaxDelay != "" {
			maxDelay, err := time.ParseDuration(r.MaxDelay)
			if err != nil {
				add("persistence: invalid format for 'retry.max_delay': %v", err)
			} else if maxDelay > 0 && delayErr == nil && maxDelay < base {
				add("persistence: 'retry.max_delay' (%v) cannot be less than 'retry.delay' (%v)", maxDelay, base)
			}
		}
		if r.BackoffFactor != nil && *r.BackoffFactor < 1.0 {
			add("persistence: 'retry.backoff_factor' must be at least 1.0")
		}
		if r.Jitter != nil && (*r.Jitter < 0 || *r.Jitter > 1) {
			add("persistence: 'retry.jitter' must be between 0 and 1")
		}
	}
	return errs
}
