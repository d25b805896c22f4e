// Package scenario parses TOML judging scenarios into submissions plus
// expected verdicts. The run command uses it for local smoke runs.
package scenario

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/arbiter-oj/arbiter/api"
)

// SpecTest is a single test case in the scenario file.
type SpecTest struct {
	In   string  `toml:"in"`
	Ans  string  `toml:"ans"`
	Mode string  `toml:"mode"`
	Tol  float64 `toml:"tol"`
}

// SpecLimits overrides resource limits for a scenario submission.
type SpecLimits struct {
	CpuMs        int64 `toml:"cpu_ms"`
	WallMs       int64 `toml:"wall_ms"`
	MemKiB       int64 `toml:"mem_kib"`
	MaxOutputKiB int64 `toml:"max_output_kib"`
}

// SpecRequest represents a request block inside a scenario entry.
type SpecRequest struct {
	LangID string     `toml:"lang_id"`
	Code   string     `toml:"code"`
	Tests  []SpecTest `toml:"tests"`
	Limits SpecLimits `toml:"limits"`
}

// SpecExpect describes the expected submission verdict and, optionally,
// per-test verdicts in order.
type SpecExpect struct {
	Verdict      string   `toml:"verdict"`
	TestVerdicts []string `toml:"test_verdicts"`
}

type specSuite struct {
	Description string        `toml:"description"`
	RequestAOT  []SpecRequest `toml:"request"`
	Expect      SpecExpect    `toml:"expect"`
}

type specRoot struct {
	Suites []specSuite `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML.
type Case struct {
	Name       string
	Submission api.Submission
	Expect     SpecExpect
}

// Parse reads a scenario TOML file and converts it to runnable cases.
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Suites))
	for i, suite := range root.Suites {
		if len(suite.RequestAOT) == 0 {
			return nil, fmt.Errorf("scenario %q is missing its request block", suite.Description)
		}
		req := suite.RequestAOT[0]
		if req.LangID == "" {
			return nil, fmt.Errorf("scenario %q is missing lang_id", suite.Description)
		}

		subm := api.Submission{
			ID:         uuid.New().String(),
			LangID:     req.LangID,
			SourceCode: req.Code,
			Limits:     specLimits(req.Limits),
		}
		for j, t := range req.Tests {
			in, ans := t.In, t.Ans
			subm.Tests = append(subm.Tests, api.TestCase{
				ID:             j + 1,
				Input:          &in,
				Answer:         &ans,
				Mode:           api.CompareMode(t.Mode),
				FloatTolerance: t.Tol,
			})
		}

		name := suite.Description
		if name == "" {
			name = fmt.Sprintf("scenario %d", i+1)
		}
		cases = append(cases, Case{Name: name, Submission: subm, Expect: suite.Expect})
	}
	return cases, nil
}

func specLimits(l SpecLimits) *api.LimitOverrides {
	if l == (SpecLimits{}) {
		return nil
	}
	out := &api.LimitOverrides{}
	if l.CpuMs > 0 {
		out.CpuMs = &l.CpuMs
	}
	if l.WallMs > 0 {
		out.WallMs = &l.WallMs
	}
	if l.MemKiB > 0 {
		out.MemKiB = &l.MemKiB
	}
	if l.MaxOutputKiB > 0 {
		out.MaxOutputKiB = &l.MaxOutputKiB
	}
	return out
}

// Check compares a result against the scenario expectation and returns a
// list of human-readable mismatches, empty when everything matched.
func Check(c Case, res *api.SubmissionResult) []string {
	var problems []string
	if c.Expect.Verdict != "" && string(res.Verdict) != c.Expect.Verdict {
		problems = append(problems,
			fmt.Sprintf("verdict: got %s, want %s", res.Verdict, c.Expect.Verdict))
	}
	for i, want := range c.Expect.TestVerdicts {
		if i >= len(res.Tests) {
			problems = append(problems, fmt.Sprintf("test %d: no result, want %s", i+1, want))
			continue
		}
		if got := string(res.Tests[i].Verdict); got != want {
			problems = append(problems, fmt.Sprintf("test %d: got %s, want %s", i+1, got, want))
		}
	}
	return problems
}
