package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig controls Retrying.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	// Timeout bounds each individual call to the wrapped store.
	Timeout time.Duration `yaml:"timeout" env:"STORAGE_TIMEOUT"`
}

func (c *RetryConfig) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Retrying wraps a Store and retries failed puts with exponential backoff.
// Every call to the wrapped store runs under its own Timeout. Puts are
// full-object overwrites of the same key, so a repeated attempt leaves the
// store in the same state as a single successful one.
type Retrying struct {
	next  Store
	cfg   RetryConfig
	sleep func(context.Context, time.Duration) error
}

// NewRetrying wraps next.
func NewRetrying(next Store, cfg RetryConfig) *Retrying {
	cfg.setDefaults()
	return &Retrying{next: next, cfg: cfg, sleep: sleepCtx}
}

func (r *Retrying) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	delay := r.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = r.put(ctx, bucket, key, body, contentType)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNotConfigured) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
		}
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}
	return fmt.Errorf("after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func (r *Retrying) put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.next.Put(ctx, bucket, key, body, contentType)
}

// Exists delegates when the wrapped store supports it. It is not retried.
func (r *Retrying) Exists(ctx context.Context, bucket, key string) (bool, error) {
	st, ok := r.next.(Stater)
	if !ok {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return st.Exists(ctx, bucket, key)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
