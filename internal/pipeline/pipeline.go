// Package pipeline sequences one submission through compile and per-test
// run steps and produces its single terminal SubmissionResult.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/box"
	"github.com/arbiter-oj/arbiter/internal/filestore"
	"github.com/arbiter-oj/arbiter/internal/langs"
	"github.com/arbiter-oj/arbiter/internal/report"
	"github.com/arbiter-oj/arbiter/internal/runner"
	"github.com/arbiter-oj/arbiter/internal/verdict"
)

type Config struct {
	// WorkRoot hosts the per-submission workspaces.
	WorkRoot string

	Registry *langs.Registry

	// Files resolves URL-referenced test content; nil restricts submissions
	// to inline test content.
	Files *filestore.FileStore

	// WallBudget caps the whole submission; 0 derives it from the per-test
	// wall limit and the test count. Tests past the budget are skipped, not
	// run.
	WallBudget time.Duration

	Logger *slog.Logger
}

type Pipeline struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Run judges one submission. It always returns a terminal result: scored,
// compile_error, cancelled, or internal_error. A panic anywhere inside is
// contained and becomes an internal_error result so one submission can
// never take down the worker that runs it.
func (p *Pipeline) Run(ctx context.Context, subm api.Submission, rep report.Reporter) (res *api.SubmissionResult) {
	res = &api.SubmissionResult{
		SubmissionID: subm.ID,
		StartedAt:    time.Now(),
	}
	log := p.log.With("subm", subm.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			msg := fmt.Sprintf("internal error: %v", r)
			res.Verdict = api.VerdictInternalError
			res.ErrorMessage = &msg
		}
		res.FinishedAt = time.Now()
		rep.FinishJob(res)
	}()

	tc, err := p.cfg.Registry.Resolve(subm.LangID)
	if err != nil {
		log.Warn("unsupported language", "lang", subm.LangID)
		res.Verdict = api.VerdictUnsupportedLanguage
		return res
	}

	rep.StartJob(tc.ID, len(subm.Tests))
	p.scheduleDownloads(subm.Tests)

	ws, err := box.New(p.cfg.WorkRoot, subm.ID)
	if err != nil {
		return p.internalError(res, log, fmt.Errorf("failed to create workspace: %w", err))
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.Warn("failed to remove workspace", "error", err)
		}
	}()

	if err := ws.AddFile(tc.SourceFname, []byte(subm.SourceCode)); err != nil {
		return p.internalError(res, log, fmt.Errorf("failed to write source: %w", err))
	}

	runLimits := tc.ResolveLimits(subm.Limits)

	if tc.NeedsCompile() {
		rep.StartCompile()
		attempt := runner.Run(ctx, runner.Cmd{
			Line: tc.CompileCmd,
			Dir:  ws.Path(),
		}, tc.CompileLimits(runLimits))

		res.Compile = toCompileResult(attempt)
		rep.FinishCompile(res.Compile)

		switch {
		case attempt.Status == runner.StatusSpawnFailed:
			return p.internalError(res, log,
				fmt.Errorf("compiler spawn failed: %s", attempt.SpawnError))
		case attempt.Status == runner.StatusKilled:
			for _, t := range subm.Tests {
				rep.SkipTest(t.ID, api.VerdictCancelled)
				res.Tests = append(res.Tests, api.TestResult{
					TestID:  t.ID,
					Verdict: api.VerdictCancelled,
				})
			}
			res.Verdict = api.VerdictCancelled
			return res
		case attempt.Status != runner.StatusCompleted || attempt.ExitCode != 0:
			// No test is ever executed for a submission that does not
			// compile; the per-test records are synthesized.
			log.Info("compilation failed", "status", attempt.Status, "exit", attempt.ExitCode)
			for _, t := range subm.Tests {
				res.Tests = append(res.Tests, api.TestResult{
					TestID:  t.ID,
					Verdict: api.VerdictCompileError,
				})
			}
			res.Verdict = api.VerdictCompileError
			return res
		}
	}

	deadline := time.Now().Add(p.wallBudget(runLimits, len(subm.Tests)))

	cancelled := false
	for _, t := range subm.Tests {
		if ctx.Err() != nil {
			cancelled = true
		}
		if cancelled {
			rep.SkipTest(t.ID, api.VerdictCancelled)
			res.Tests = append(res.Tests, api.TestResult{TestID: t.ID, Verdict: api.VerdictCancelled})
			continue
		}
		if time.Now().After(deadline) {
			rep.SkipTest(t.ID, api.VerdictSkipped)
			res.Tests = append(res.Tests, api.TestResult{TestID: t.ID, Verdict: api.VerdictSkipped})
			continue
		}

		rep.ReachTest(t.ID)
		tr := p.runTest(ctx, ws, tc, runLimits, t, log)
		res.Tests = append(res.Tests, tr)
		rep.FinishTest(tr)

		if tr.Verdict == api.VerdictCancelled {
			cancelled = true
		}
		if tr.CpuMs > res.MaxCpuMs {
			res.MaxCpuMs = tr.CpuMs
		}
		if tr.MemKiB > res.MaxMemKiB {
			res.MaxMemKiB = tr.MemKiB
		}
		res.TotalCpuMs += tr.CpuMs
	}

	res.Verdict, res.FirstFailedTest = verdict.Aggregate(res.Tests)
	log.Info("submission scored", "verdict", res.Verdict, "tests", len(res.Tests))
	return res
}

// runTest executes one test case. Failures here never abort the remaining
// tests; every declared test gets a result.
func (p *Pipeline) runTest(
	ctx context.Context,
	ws *box.Box,
	tc *langs.Toolchain,
	lim runner.Limits,
	t api.TestCase,
	log *slog.Logger,
) api.TestResult {
	input, err := p.testContent(ctx, t.Input, t.InputSHA256)
	if err != nil {
		log.Error("failed to resolve test input", "test", t.ID, "error", err)
		return api.TestResult{TestID: t.ID, Verdict: api.VerdictInternalError}
	}
	answer, err := p.testContent(ctx, t.Answer, t.AnswerSHA256)
	if err != nil {
		log.Error("failed to resolve test answer", "test", t.ID, "error", err)
		return api.TestResult{TestID: t.ID, Verdict: api.VerdictInternalError}
	}

	attempt := runner.Run(ctx, runner.Cmd{
		Line:  tc.RunCmd,
		Dir:   ws.Path(),
		Stdin: input,
	}, lim)

	tr := toTestResult(t.ID, attempt)
	if tr.Verdict == api.VerdictPass &&
		!verdict.Compare(attempt.Stdout, answer, t.Mode, t.FloatTolerance) {
		tr.Verdict = api.VerdictWrongAnswer
	}
	return tr
}

// testContent resolves inline content or awaits the scheduled download.
func (p *Pipeline) testContent(ctx context.Context, inline *string, sha *string) ([]byte, error) {
	if inline != nil {
		return []byte(*inline), nil
	}
	if sha == nil {
		return nil, fmt.Errorf("test case has neither inline content nor a sha reference")
	}
	if p.cfg.Files == nil {
		return nil, fmt.Errorf("no file store configured for sha-referenced test content")
	}
	return p.cfg.Files.Await(ctx, *sha)
}

func (p *Pipeline) scheduleDownloads(tests []api.TestCase) {
	if p.cfg.Files == nil {
		return
	}
	for _, t := range tests {
		if t.Input == nil && t.InputSHA256 != nil && t.InputURL != nil {
			_ = p.cfg.Files.Schedule(*t.InputSHA256, *t.InputURL)
		}
		if t.Answer == nil && t.AnswerSHA256 != nil && t.AnswerURL != nil {
			_ = p.cfg.Files.Schedule(*t.AnswerSHA256, *t.AnswerURL)
		}
	}
}

func (p *Pipeline) wallBudget(lim runner.Limits, numTests int) time.Duration {
	if p.cfg.WallBudget > 0 {
		return p.cfg.WallBudget
	}
	return time.Duration(lim.WallMs*int64(numTests+1)) * time.Millisecond
}

func (p *Pipeline) internalError(res *api.SubmissionResult, log *slog.Logger, err error) *api.SubmissionResult {
	log.Error("internal judging error", "error", err)
	msg := err.Error()
	res.Verdict = api.VerdictInternalError
	res.ErrorMessage = &msg
	return res
}

func toCompileResult(a *runner.Attempt) *api.CompileResult {
	return &api.CompileResult{
		ExitCode:   a.ExitCode,
		ExitSignal: a.ExitSignal,
		CpuMs:      a.CpuMs,
		WallMs:     a.WallMs,
		MemKiB:     a.MemKiB,
		Stdout:     string(a.Stdout),
		Stderr:     string(a.Stderr),
	}
}

func toTestResult(testID int, a *runner.Attempt) api.TestResult {
	return api.TestResult{
		TestID:     testID,
		Verdict:    verdict.FromAttempt(a),
		ExitCode:   a.ExitCode,
		ExitSignal: a.ExitSignal,
		CpuMs:      a.CpuMs,
		WallMs:     a.WallMs,
		MemKiB:     a.MemKiB,
		Stdout:     string(a.Stdout),
		Stderr:     string(a.Stderr),
	}
}
