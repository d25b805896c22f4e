package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/store"
)

type flaky struct {
	failures int
	saves    int
}

func (f *flaky) Save(_ context.Context, _ *api.SubmissionResult) error {
	f.saves++
	if f.saves <= f.failures {
		return fmt.Errorf("disk on fire")
	}
	return nil
}

func (f *flaky) Load(_ context.Context, _ string) (*api.SubmissionResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestRetryingEventuallySucceeds(t *testing.T) {
	inner := &flaky{failures: 2}
	r := &store.Retrying{Inner: inner, Attempts: 3, Backoff: time.Millisecond}

	err := r.Save(context.Background(), &api.SubmissionResult{SubmissionID: "s"})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.saves)
}

func TestRetryingGivesUp(t *testing.T) {
	inner := &flaky{failures: 100}
	r := &store.Retrying{Inner: inner, Attempts: 3, Backoff: time.Millisecond}

	err := r.Save(context.Background(), &api.SubmissionResult{SubmissionID: "s"})
	require.Error(t, err)
	assert.Equal(t, 3, inner.saves)
}

func TestRetryingStopsOnContext(t *testing.T) {
	inner := &flaky{failures: 100}
	r := &store.Retrying{Inner: inner, Attempts: 50, Backoff: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Save(ctx, &api.SubmissionResult{SubmissionID: "s"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, inner.saves, 5)
}
