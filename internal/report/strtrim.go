package report

import (
	"strings"

	"github.com/arbiter-oj/arbiter/api"
)

// TrimToRect clips s to at most maxHeight lines of maxWidth characters,
// marking elisions, so streamed excerpts stay small.
func TrimToRect(s string, maxHeight, maxWidth int) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if len(line) > maxWidth {
			sb.WriteString(line[:maxWidth])
			sb.WriteString("[...]")
		} else {
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// TrimResult returns a copy of res with its captured streams clipped for
// streaming backends.
func TrimResult(res api.TestResult, maxHeight, maxWidth int) api.TestResult {
	res.Stdout = TrimToRect(res.Stdout, maxHeight, maxWidth)
	res.Stderr = TrimToRect(res.Stderr, maxHeight, maxWidth)
	return res
}

// TrimCompile clips a compile result's streams; nil passes through.
func TrimCompile(c *api.CompileResult, maxHeight, maxWidth int) *api.CompileResult {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Stdout = TrimToRect(cp.Stdout, maxHeight, maxWidth)
	cp.Stderr = TrimToRect(cp.Stderr, maxHeight, maxWidth)
	return &cp
}
