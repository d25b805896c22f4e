// Package verdict scores captured output against expected output and
// aggregates per-test verdicts into a submission verdict.
package verdict

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/runner"
)

// Compare reports whether actual matches expected under mode. It never
// inspects resource usage; resource-caused failures are attributed before
// output comparison happens.
func Compare(actual, expected []byte, mode api.CompareMode, tol float64) bool {
	switch mode {
	case api.CompareTrim:
		return normalizeTrailing(actual) == normalizeTrailing(expected)
	case api.CompareTokens:
		return compareTokens(actual, expected, tol)
	default:
		return bytes.Equal(actual, expected)
	}
}

// normalizeTrailing strips trailing whitespace per line and trailing blank
// lines.
func normalizeTrailing(b []byte) string {
	lines := strings.Split(string(b), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func compareTokens(actual, expected []byte, tol float64) bool {
	at := strings.Fields(string(actual))
	et := strings.Fields(string(expected))
	if len(at) != len(et) {
		return false
	}
	for i := range at {
		af, aerr := strconv.ParseFloat(at[i], 64)
		ef, eerr := strconv.ParseFloat(et[i], 64)
		if aerr == nil && eerr == nil {
			diff := math.Abs(af - ef)
			if diff <= tol {
				continue
			}
			scale := math.Max(math.Abs(af), math.Abs(ef))
			if scale > 0 && diff/scale <= tol {
				continue
			}
			return false
		}
		if at[i] != et[i] {
			return false
		}
	}
	return true
}

// FromAttempt maps an attempt's terminal status to a test verdict. A
// non-zero exit or death by signal only counts as a runtime error when the
// limiter did not kill the process first.
func FromAttempt(a *runner.Attempt) api.Verdict {
	switch a.Status {
	case runner.StatusTimedOut:
		return api.VerdictTimeLimit
	case runner.StatusMemoryExceeded:
		return api.VerdictMemoryLimit
	case runner.StatusOutputExceeded:
		return api.VerdictOutputLimit
	case runner.StatusKilled:
		return api.VerdictCancelled
	case runner.StatusSpawnFailed:
		return api.VerdictInternalError
	}
	if a.ExitCode != 0 || a.ExitSignal != nil {
		return api.VerdictRuntimeError
	}
	return api.VerdictPass
}

// severity ranks verdicts; higher is worse. Resource and runtime failures
// share a rank, so the first such test in submission order decides the
// aggregate among them.
var severity = map[api.Verdict]int{
	api.VerdictPass:                0,
	api.VerdictWrongAnswer:         40,
	api.VerdictSkipped:             50,
	api.VerdictRuntimeError:        60,
	api.VerdictTimeLimit:           60,
	api.VerdictMemoryLimit:         60,
	api.VerdictOutputLimit:         60,
	api.VerdictCompileError:        80,
	api.VerdictCancelled:           90,
	api.VerdictUnsupportedLanguage: 95,
	api.VerdictInternalError:       100,
}

// Severity exposes the rank for a verdict; unknown verdicts rank worst.
func Severity(v api.Verdict) int {
	if s, ok := severity[v]; ok {
		return s
	}
	return 100
}

// Aggregate computes the submission verdict from per-test verdicts and the
// 1-based position of the test that decided it (0 when all passed). The
// worst verdict wins; among equally bad tests the first in submission order
// does. A run cut short by the submission-level time budget aggregates as
// time_limit when nothing worse happened.
func Aggregate(tests []api.TestResult) (api.Verdict, int) {
	agg := api.VerdictPass
	deciding := 0
	best := 0
	for i, t := range tests {
		if s := Severity(t.Verdict); s > best {
			best = s
			agg = t.Verdict
			deciding = i + 1
		}
	}
	if agg == api.VerdictPass {
		return agg, 0
	}
	if agg == api.VerdictSkipped {
		agg = api.VerdictTimeLimit
	}
	return agg, deciding
}
