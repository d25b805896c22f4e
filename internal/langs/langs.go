// Package langs maps language identifiers to toolchains: the commands used
// to compile and run a submission plus the default resource ceilings.
package langs

import (
	"errors"
	"fmt"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/runner"
)

// ErrUnsupportedLanguage is returned by Resolve for unknown identifiers.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Toolchain describes one language: how to materialize the source file,
// whether a compile step exists, and how to run the result. Command lines
// are fixed templates executed with the submission workspace as the working
// directory; submission content never reaches them.
type Toolchain struct {
	ID   string
	Name string

	SourceFname string

	// CompileCmd is empty for interpreted languages.
	CompileCmd    string
	CompiledFname string

	RunCmd string

	// Compile steps get larger ceilings than runs.
	CompileTimeMult float64
	CompileMemMult  float64

	Defaults runner.Limits
}

// NeedsCompile reports whether the language has a compile step.
func (t *Toolchain) NeedsCompile() bool {
	return t.CompileCmd != ""
}

// ResolveLimits merges the toolchain defaults with per-submission overrides.
// The result is complete before execution starts and is never renegotiated.
func (t *Toolchain) ResolveLimits(o *api.LimitOverrides) runner.Limits {
	lim := t.Defaults
	if o == nil {
		return lim
	}
	if o.CpuMs != nil {
		lim.CpuMs = *o.CpuMs
	}
	if o.WallMs != nil {
		lim.WallMs = *o.WallMs
	}
	if o.MemKiB != nil {
		lim.MemKiB = *o.MemKiB
	}
	if o.MaxOutputKiB != nil {
		lim.MaxOutputBytes = *o.MaxOutputKiB * 1024
	}
	if o.MaxProcs != nil {
		lim.MaxProcs = *o.MaxProcs
	}
	return lim
}

// CompileLimits derives the compile-step ceilings from the run limits.
func (t *Toolchain) CompileLimits(run runner.Limits) runner.Limits {
	tm := t.CompileTimeMult
	if tm <= 0 {
		tm = 5
	}
	mm := t.CompileMemMult
	if mm <= 0 {
		mm = 4
	}
	lim := run
	lim.CpuMs = int64(float64(run.CpuMs) * tm)
	lim.WallMs = int64(float64(run.WallMs) * tm)
	lim.MemKiB = int64(float64(run.MemKiB) * mm)
	return lim
}

// Registry resolves language identifiers to toolchains. It is populated at
// process start and read-only afterwards.
type Registry struct {
	byID map[string]*Toolchain
}

// NewRegistry builds a registry with the builtin toolchain table.
func NewRegistry() *Registry {
	r := &Registry{byID: map[string]*Toolchain{}}
	for i := range builtins {
		t := builtins[i]
		r.byID[t.ID] = &t
	}
	return r
}

// Resolve looks up a toolchain by language id.
func (r *Registry) Resolve(langID string) (*Toolchain, error) {
	t, ok := r.byID[langID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, langID)
	}
	return t, nil
}

// IDs lists the registered language identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) add(t Toolchain) {
	cp := t
	r.byID[t.ID] = &cp
}
