package api

import "time"

// Verdict classifies a single test or a whole submission.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictWrongAnswer Verdict = "wrong_answer"

	VerdictTimeLimit    Verdict = "time_limit"
	VerdictMemoryLimit  Verdict = "memory_limit"
	VerdictOutputLimit  Verdict = "output_limit"
	VerdictRuntimeError Verdict = "runtime_error"

	VerdictCompileError Verdict = "compile_error"

	VerdictSkipped   Verdict = "skipped"
	VerdictCancelled Verdict = "cancelled"

	VerdictUnsupportedLanguage Verdict = "unsupported_language"
	VerdictInternalError       Verdict = "internal_error"
)

// CompileResult records the compile step, when the language has one.
type CompileResult struct {
	ExitCode   int64  `json:"exit_code"`
	ExitSignal *int64 `json:"exit_signal,omitempty"`

	CpuMs  int64 `json:"cpu_ms"`
	WallMs int64 `json:"wall_ms"`
	MemKiB int64 `json:"mem_kib"`

	// Stdout and Stderr are truncated at the output ceiling.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// TestResult is the outcome of one test case run.
type TestResult struct {
	TestID  int     `json:"test_id"`
	Verdict Verdict `json:"verdict"`

	ExitCode   int64  `json:"exit_code"`
	ExitSignal *int64 `json:"exit_signal,omitempty"`

	CpuMs  int64 `json:"cpu_ms"`
	WallMs int64 `json:"wall_ms"`
	MemKiB int64 `json:"mem_kib"`

	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// SubmissionResult is the single terminal record for a submission.
// The engine creates it exactly once; it is immutable afterwards.
type SubmissionResult struct {
	SubmissionID string  `json:"submission_id"`
	Verdict      Verdict `json:"verdict"`

	// FirstFailedTest is the 1-based position of the test that decided a
	// non-pass verdict, 0 when every test passed or none ran.
	FirstFailedTest int `json:"first_failed_test,omitempty"`

	Compile *CompileResult `json:"compile,omitempty"`
	Tests   []TestResult   `json:"tests"`

	MaxCpuMs   int64 `json:"max_cpu_ms"`
	MaxMemKiB  int64 `json:"max_mem_kib"`
	TotalCpuMs int64 `json:"total_cpu_ms"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// ErrorMessage is set for internal_error results only.
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Passed reports whether every test verdict is pass.
func (r *SubmissionResult) Passed() bool {
	if len(r.Tests) == 0 {
		return false
	}
	for _, t := range r.Tests {
		if t.Verdict != VerdictPass {
			return false
		}
	}
	return true
}
