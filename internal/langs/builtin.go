package langs

import "github.com/arbiter-oj/arbiter/internal/runner"

func defaultLimits() runner.Limits {
	return runner.Limits{
		CpuMs:          2000,
		WallMs:         5000,
		MemKiB:         262144,
		MaxOutputBytes: 1 << 20,
		MaxProcs:       64,
	}
}

// builtins covers the toolchains installed on the judge hosts. The TOML
// overlay in config.go can add to or replace these entries.
var builtins = []Toolchain{
	{
		ID:          "python",
		Name:        "Python 3",
		SourceFname: "main.py",
		RunCmd:      "python3 main.py",
		Defaults:    defaultLimits(),
	},
	{
		ID:          "pypy",
		Name:        "PyPy 3",
		SourceFname: "main.py",
		RunCmd:      "pypy3 main.py",
		Defaults:    defaultLimits(),
	},
	{
		ID:            "cpp",
		Name:          "C++ 17 (g++)",
		SourceFname:   "main.cpp",
		CompileCmd:    "g++ -std=c++17 -O2 -o main main.cpp",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "c",
		Name:          "C 11 (gcc)",
		SourceFname:   "main.c",
		CompileCmd:    "gcc -std=c11 -O2 -o main main.c",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "java",
		Name:          "Java",
		SourceFname:   "Main.java",
		CompileCmd:    "javac Main.java",
		CompiledFname: "Main.class",
		RunCmd:        "java -Xmx256m Main",
		// The JVM forks a thread pool even for hello world.
		Defaults: withProcs(defaultLimits(), 256),
	},
	{
		ID:            "go",
		Name:          "Go",
		SourceFname:   "main.go",
		CompileCmd:    "go build -o main main.go",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      withProcs(defaultLimits(), 256),
	},
	{
		ID:          "node",
		Name:        "Node.js",
		SourceFname: "main.js",
		RunCmd:      "node main.js",
		Defaults:    defaultLimits(),
	},
	{
		ID:            "rust",
		Name:          "Rust",
		SourceFname:   "main.rs",
		CompileCmd:    "rustc -O -o main main.rs",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "pascal",
		Name:          "Free Pascal",
		SourceFname:   "main.pas",
		CompileCmd:    "fpc -O2 -omain main.pas",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:          "lua",
		Name:        "Lua",
		SourceFname: "main.lua",
		RunCmd:      "lua main.lua",
		Defaults:    defaultLimits(),
	},
	{
		ID:            "csharp",
		Name:          "C# (Mono)",
		SourceFname:   "Main.cs",
		CompileCmd:    "mcs -out:main.exe Main.cs",
		CompiledFname: "main.exe",
		RunCmd:        "mono main.exe",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "haskell",
		Name:          "Haskell (GHC)",
		SourceFname:   "main.hs",
		CompileCmd:    "ghc -O2 -o main main.hs",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "fortran",
		Name:          "Fortran (gfortran)",
		SourceFname:   "main.f90",
		CompileCmd:    "gfortran -O2 -o main main.f90",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
	{
		ID:            "cobol",
		Name:          "COBOL (GnuCOBOL)",
		SourceFname:   "main.cob",
		CompileCmd:    "cobc -x -free -o main main.cob",
		CompiledFname: "main",
		RunCmd:        "./main",
		Defaults:      defaultLimits(),
	},
}

func withProcs(lim runner.Limits, procs int64) runner.Limits {
	lim.MaxProcs = procs
	return lim
}
