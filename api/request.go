package api

// CompareMode selects how a submission's output is matched against the answer.
type CompareMode string

const (
	// CompareExact requires a byte-for-byte match.
	CompareExact CompareMode = "exact"
	// CompareTrim ignores trailing whitespace on each line and trailing blank lines.
	CompareTrim CompareMode = "trim"
	// CompareTokens matches whitespace-separated tokens; numeric tokens are
	// compared within FloatTolerance, everything else exactly.
	CompareTokens CompareMode = "tokens"
)

// Submission is one judging request. It is immutable once admitted.
type Submission struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`

	LangID     string `json:"lang_id"`
	SourceCode string `json:"source_code"`

	// Limits overrides the language defaults per field; nil keeps defaults.
	Limits *LimitOverrides `json:"limits,omitempty"`

	Tests []TestCase `json:"tests"`

	// Priority marks an expedited re-judge; it jumps the arrival queue.
	Priority bool `json:"priority,omitempty"`
}

// LimitOverrides carries per-submission resource limit overrides.
// Nil fields fall back to the toolchain defaults.
type LimitOverrides struct {
	CpuMs        *int64 `json:"cpu_ms,omitempty"`
	WallMs       *int64 `json:"wall_ms,omitempty"`
	MemKiB       *int64 `json:"mem_kib,omitempty"`
	MaxOutputKiB *int64 `json:"max_output_kib,omitempty"`
	MaxProcs     *int64 `json:"max_procs,omitempty"`
}

// TestCase is one input/answer pair. Content is either inline or referenced
// by URL plus sha256 so it can be fetched through the file store.
type TestCase struct {
	ID int `json:"id"`

	Input       *string `json:"input,omitempty"`
	InputURL    *string `json:"input_url,omitempty"`
	InputSHA256 *string `json:"input_sha256,omitempty"`

	Answer       *string `json:"answer,omitempty"`
	AnswerURL    *string `json:"answer_url,omitempty"`
	AnswerSHA256 *string `json:"answer_sha256,omitempty"`

	Mode CompareMode `json:"mode,omitempty"`
	// FloatTolerance is the epsilon for CompareTokens; zero means exact tokens.
	FloatTolerance float64 `json:"float_tolerance,omitempty"`
}
