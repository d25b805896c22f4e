package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/langs"
	"github.com/arbiter-oj/arbiter/internal/pipeline"
	"github.com/arbiter-oj/arbiter/internal/report"
	"github.com/arbiter-oj/arbiter/internal/scheduler"
	"github.com/arbiter-oj/arbiter/internal/store/memstore"
)

func newTestScheduler(t *testing.T, cfg scheduler.Config) *scheduler.Scheduler {
	t.Helper()

	path := filepath.Join(t.TempDir(), "toolchains.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[toolchains]]
id = "sh"
name = "Shell"
source = "main.sh"
run = "bash main.sh"
`), 0o644))
	registry, err := langs.LoadRegistry(path)
	require.NoError(t, err)

	pipe := pipeline.New(pipeline.Config{
		WorkRoot: t.TempDir(),
		Registry: registry,
	})
	s := scheduler.New(cfg, pipe, memstore.New(), func(api.Submission) report.Reporter {
		return report.Discard()
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func queueMessage(t *testing.T, subm api.Submission) types.Message {
	t.Helper()
	body, err := json.Marshal(subm)
	require.NoError(t, err)
	return types.Message{Body: aws.String(string(body))}
}

func shSubmission(id, user string) api.Submission {
	in, ans := "", ""
	return api.Submission{
		ID:         id,
		UserID:     user,
		LangID:     "sh",
		SourceCode: "sleep 2",
		Tests:      []api.TestCase{{ID: 1, Input: &in, Answer: &ans}},
	}
}

func TestHandleMessageAdmits(t *testing.T) {
	s := newTestScheduler(t, scheduler.Config{Workers: 1, QueueDepth: 4})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	del := handleMessage(context.Background(), queueMessage(t, shSubmission("m-1", "")), s, logger)
	assert.True(t, del)
}

func TestHandleMessageMalformedIsDeleted(t *testing.T) {
	s := newTestScheduler(t, scheduler.Config{Workers: 1, QueueDepth: 4})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	del := handleMessage(context.Background(), types.Message{Body: aws.String("{not json")}, s, logger)
	assert.True(t, del)
}

// Backpressure refusals must keep the message on the queue; a deleted
// message would make the submission vanish without a terminal result.
func TestHandleMessageUserLimitRedelivers(t *testing.T) {
	s := newTestScheduler(t, scheduler.Config{Workers: 1, QueueDepth: 4, PerUserLimit: 1})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	del := handleMessage(context.Background(), queueMessage(t, shSubmission("u-1", "alice")), s, logger)
	require.True(t, del)

	del = handleMessage(context.Background(), queueMessage(t, shSubmission("u-2", "alice")), s, logger)
	assert.False(t, del)
}

func TestHandleMessageOverloadRedelivers(t *testing.T) {
	s := newTestScheduler(t, scheduler.Config{Workers: 1, QueueDepth: 1})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	require.True(t, handleMessage(context.Background(), queueMessage(t, shSubmission("o-1", "")), s, logger))
	time.Sleep(200 * time.Millisecond)
	require.True(t, handleMessage(context.Background(), queueMessage(t, shSubmission("o-2", "")), s, logger))

	del := handleMessage(context.Background(), queueMessage(t, shSubmission("o-3", "")), s, logger)
	assert.False(t, del)
}

func TestHandleMessageDuplicateIsDeleted(t *testing.T) {
	s := newTestScheduler(t, scheduler.Config{Workers: 1, QueueDepth: 4})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	require.True(t, handleMessage(context.Background(), queueMessage(t, shSubmission("d-1", "")), s, logger))
	del := handleMessage(context.Background(), queueMessage(t, shSubmission("d-1", "")), s, logger)
	assert.True(t, del)
}
