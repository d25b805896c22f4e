// Package store persists terminal submission results.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbiter-oj/arbiter/api"
)

type Store interface {
	// Save persists a terminal result. Saving the same submission twice
	// overwrites the earlier record.
	Save(ctx context.Context, res *api.SubmissionResult) error
	// Load returns the stored result or an error when none exists.
	Load(ctx context.Context, submID string) (*api.SubmissionResult, error)
}

// Retrying wraps a Store and retries failed saves with capped backoff.
// Reads are not retried.
type Retrying struct {
	Inner    Store
	Attempts int
	Backoff  time.Duration // doubled per attempt, capped at 10x
	Logger   *slog.Logger
}

func (r *Retrying) Save(ctx context.Context, res *api.SubmissionResult) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 3
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	maxBackoff := backoff * 10

	var err error
	for i := 0; i < attempts; i++ {
		if err = r.Inner.Save(ctx, res); err == nil {
			return nil
		}
		if r.Logger != nil {
			r.Logger.Warn("failed to save result, retrying",
				"subm", res.SubmissionID, "attempt", i+1, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return fmt.Errorf("failed to save result for %s after %d attempts: %w",
		res.SubmissionID, attempts, err)
}

func (r *Retrying) Load(ctx context.Context, submID string) (*api.SubmissionResult, error) {
	return r.Inner.Load(ctx, submID)
}
