package fsstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/store/fsstore"
)

func sampleResult(id string) *api.SubmissionResult {
	msg := "boom"
	return &api.SubmissionResult{
		SubmissionID:    id,
		Verdict:         api.VerdictWrongAnswer,
		FirstFailedTest: 2,
		Tests: []api.TestResult{
			{TestID: 1, Verdict: api.VerdictPass, CpuMs: 12, MemKiB: 1024},
			{TestID: 2, Verdict: api.VerdictWrongAnswer, Stdout: "41\n"},
		},
		MaxCpuMs:     12,
		MaxMemKiB:    1024,
		TotalCpuMs:   12,
		StartedAt:    time.Now().Truncate(time.Second),
		FinishedAt:   time.Now().Truncate(time.Second),
		ErrorMessage: &msg,
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	want := sampleResult("subm-1")
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "subm-1")
	require.NoError(t, err)
	assert.Equal(t, want.Verdict, got.Verdict)
	assert.Equal(t, want.FirstFailedTest, got.FirstFailedTest)
	require.Len(t, got.Tests, 2)
	assert.Equal(t, "41\n", got.Tests[1].Stdout)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)
}

func TestSaveOverwrites(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleResult("subm-1")
	require.NoError(t, s.Save(ctx, first))

	second := sampleResult("subm-1")
	second.Verdict = api.VerdictPass
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx, "subm-1")
	require.NoError(t, err)
	assert.Equal(t, api.VerdictPass, got.Verdict)
}

func TestLoadMissing(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "nope")
	require.Error(t, err)
}

func TestPathSafeIDs(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	res := sampleResult("../../etc/passwd")
	require.NoError(t, s.Save(ctx, res))
	_, err = s.Load(ctx, "../../etc/passwd")
	require.NoError(t, err)
}
