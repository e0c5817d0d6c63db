// Package timeouts holds the deadlines applied below the router's request
// timeout: health pings, audited writes and background batches.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing  = 2 * time.Second
	DefaultWrite = 10 * time.Second
	DefaultBatch = 2 * time.Minute
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping  time.Duration
	Write time.Duration
	Batch time.Duration
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{Ping: DefaultPing, Write: DefaultWrite, Batch: DefaultBatch}
}

// Ping bounds a database health check.
func Ping() time.Duration { return Current().Ping }

// Write bounds one audited commit (entity write plus audit record).
func Write() time.Duration { return Current().Write }

// Batch bounds one run of a background job.
func Batch() time.Duration { return Current().Batch }

// Current returns the timeouts in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// Configure overrides the non-zero values of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Write > 0 {
		cur.Write = cfg.Write
	}
	if cfg.Batch > 0 {
		cur.Batch = cfg.Batch
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// WithTimeout derives a context bounded by timeout. The returned cancel
// logs a warning when the deadline was hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
