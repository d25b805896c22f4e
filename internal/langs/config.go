package langs

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/arbiter-oj/arbiter/internal/runner"
)

type tomlLimits struct {
	CpuMs        int64 `toml:"cpu_ms"`
	WallMs       int64 `toml:"wall_ms"`
	MemKiB       int64 `toml:"mem_kib"`
	MaxOutputKiB int64 `toml:"max_output_kib"`
	MaxProcs     int64 `toml:"max_procs"`
}

type tomlToolchain struct {
	ID            string  `toml:"id"`
	Name          string  `toml:"name"`
	Source        string  `toml:"source"`
	Compile       string  `toml:"compile"`
	Artifact      string  `toml:"artifact"`
	Run           string  `toml:"run"`
	CompileTime   float64 `toml:"compile_time_mult"`
	CompileMemory float64 `toml:"compile_mem_mult"`

	Limits *tomlLimits `toml:"limits"`
}

type tomlRoot struct {
	Toolchains []tomlToolchain `toml:"toolchains"`
}

// LoadRegistry builds the builtin registry and overlays the toolchains file
// at path. Entries with an id already present replace the builtin.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read toolchains file: %w", err)
	}
	var root tomlRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse toolchains file: %w", err)
	}

	for _, tc := range root.Toolchains {
		if tc.ID == "" || tc.Run == "" || tc.Source == "" {
			return nil, fmt.Errorf("toolchain %q: id, source and run are required", tc.ID)
		}
		t := Toolchain{
			ID:              tc.ID,
			Name:            tc.Name,
			SourceFname:     tc.Source,
			CompileCmd:      tc.Compile,
			CompiledFname:   tc.Artifact,
			RunCmd:          tc.Run,
			CompileTimeMult: tc.CompileTime,
			CompileMemMult:  tc.CompileMemory,
			Defaults:        defaultLimits(),
		}
		if tc.Limits != nil {
			t.Defaults = mergeTomlLimits(t.Defaults, *tc.Limits)
		}
		r.add(t)
	}
	return r, nil
}

func mergeTomlLimits(base runner.Limits, l tomlLimits) runner.Limits {
	if l.CpuMs > 0 {
		base.CpuMs = l.CpuMs
	}
	if l.WallMs > 0 {
		base.WallMs = l.WallMs
	}
	if l.MemKiB > 0 {
		base.MemKiB = l.MemKiB
	}
	if l.MaxOutputKiB > 0 {
		base.MaxOutputBytes = l.MaxOutputKiB * 1024
	}
	if l.MaxProcs > 0 {
		base.MaxProcs = l.MaxProcs
	}
	return base
}
