package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gxo-labs/reducto/internal/tracing"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

// Operation is one attempt of the work being retried.
type Operation func(ctx context.Context) error

// Config controls Do. Zero values mean one attempt and no delay.
type Config struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64 // fraction of the delay, 0..1, applied both ways
	// Retryable decides whether a failed attempt is worth repeating.
	// Nil retries every error.
	Retryable func(error) bool
	// Label prefixes log lines, e.g. "snapshot save store=shop".
	Label string
}

// Helper runs operations with exponential backoff and jitter. It is safe for
// concurrent use.
type Helper struct {
	log              reductolog.Logger
	randMu           sync.Mutex
	randSource       *rand.Rand
	redactedKeywords map[string]struct{}
}

func NewHelper(log reductolog.Logger) *Helper {
	if log == nil {
		panic("retry.NewHelper requires a non-nil logger")
	}
	return &Helper{
		log:              log,
		randSource:       rand.New(rand.NewSource(time.Now().UnixNano())),
		redactedKeywords: tracing.DefaultRedactedKeywords,
	}
}

// SetRedactedKeywords replaces the keywords masked in logged and returned errors.
func (h *Helper) SetRedactedKeywords(keywords map[string]struct{}) {
	h.redactedKeywords = keywords
}

func normalize(cfg Config) Config {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.BackoffFactor < 1.0 {
		cfg.BackoffFactor = 1.0
	}
	cfg.Jitter = math.Max(0, math.Min(1, cfg.Jitter))
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	return cfg
}

// Do runs op until it succeeds, the attempts are exhausted, the error is not
// retryable, or ctx is done. The returned error is the last attempt's error
// with secrets redacted from its message.
func (h *Helper) Do(ctx context.Context, cfg Config, op Operation) error {
	cfg = normalize(cfg)
	prefix := ""
	if cfg.Label != "" {
		prefix = cfg.Label + ": "
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return fmt.Errorf("retry cancelled after %d attempts with last error: %w (context: %v)",
				attempt-1, tracing.RedactError(lastErr, h.redactedKeywords), err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				h.log.Infof("%sOperation succeeded on attempt %d/%d", prefix, attempt, cfg.Attempts)
			}
			return nil
		}
		if attempt == cfg.Attempts || (cfg.Retryable != nil && !cfg.Retryable(lastErr)) {
			break
		}

		wait := h.backoff(cfg, attempt)
		h.log.Warnf("%sOperation failed on attempt %d/%d (retrying in %v): %v",
			prefix, attempt, cfg.Attempts, wait.Truncate(time.Millisecond), tracing.RedactError(lastErr, h.redactedKeywords))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry delay cancelled after attempt %d with error: %w (context: %v)",
				attempt, tracing.RedactError(lastErr, h.redactedKeywords), ctx.Err())
		}
	}

	redacted := tracing.RedactError(lastErr, h.redactedKeywords)
	h.log.Errorf("%sOperation failed definitively: %v", prefix, redacted)
	return redacted
}

// backoff returns the wait after the given failed attempt (1-based).
func (h *Helper) backoff(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Delay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if base > float64(math.MaxInt64) {
		base = float64(math.MaxInt64)
	}
	wait := time.Duration(base)

	if cfg.Jitter > 0 {
		h.randMu.Lock()
		factor := cfg.Jitter * (h.randSource.Float64()*2.0 - 1.0)
		h.randMu.Unlock()
		wait += time.Duration(float64(wait) * factor)
		if wait < 0 {
			wait = 0
		}
	}
	if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
		wait = cfg.MaxDelay
	}
	return wait
}
