package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/omrgest/internal/analyzer"
	"github.com/dgallion1/omrgest/internal/omr"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *analyzer.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// RetryingAnalyzer retries transient analyzer failures with backoff.
type RetryingAnalyzer struct {
	Next    omr.Analyzer
	Log     *slog.Logger
	Retries int
	Backoff func(attempt int) time.Duration
}

// WithRetry wraps next with the default retry policy.
func WithRetry(next omr.Analyzer, log *slog.Logger) *RetryingAnalyzer {
	return &RetryingAnalyzer{Next: next, Log: log, Retries: MaxRetries, Backoff: Backoff}
}

func (r *RetryingAnalyzer) Analyze(ctx context.Context, doc omr.Document) ([]omr.Page, error) {
	attempts := max(r.Retries, 1)
	var lastErr error
	for attempt := range attempts {
		pages, err := r.Next.Analyze(ctx, doc)
		if err == nil {
			return pages, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}
		if r.Log != nil {
			r.Log.Warn("retryable analyzer error", "attempt", attempt, "error", err)
		}
		select {
		case <-time.After(r.Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
