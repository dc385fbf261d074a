package store

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// retryPolicy bounds retries of transient SQLite failures.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryPolicy = retryPolicy{
	maxRetries: config.RetryMaxAttempts,
	baseDelay:  config.RetryBaseDelay,
	maxDelay:   config.RetryMaxDelay,
}

// isTransient reports whether err is a lock or WAL contention error.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		if sqlErr.Code() == sqlite3.SQLITE_IOERR_SHORT_READ {
			return true
		}
	}

	// busy_timeout fallthrough surfaces as plain text on some paths.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// retryOp runs fn until it succeeds, fails permanently, or ctx ends.
func retryOp(ctx context.Context, logger *slog.Logger, p retryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == p.maxRetries {
			break
		}

		delay := backoff(p, attempt)
		logger.Debug(config.MsgDBRetry,
			slog.Int(config.LogKeyAttempt, attempt+1),
			slog.Duration(config.LogKeyInterval, delay),
			slog.Any(config.LogKeyError, lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// backoff is baseDelay * 2^attempt capped at maxDelay, plus up to baseDelay of jitter.
func backoff(p retryPolicy, attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	if p.baseDelay <= 0 {
		return delay
	}
	return delay + rand.N(p.baseDelay)
}
