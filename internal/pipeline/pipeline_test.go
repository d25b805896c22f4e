package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/filestore"
	"github.com/arbiter-oj/arbiter/internal/langs"
	"github.com/arbiter-oj/arbiter/internal/pipeline"
	"github.com/arbiter-oj/arbiter/internal/report"
)

// The judged "languages" in these tests are plain shell scripts, so the
// suite runs anywhere bash exists.
const toolchainsToml = `
[[toolchains]]
id = "sh"
name = "Shell"
source = "main.sh"
run = "bash main.sh"

[[toolchains]]
id = "shc"
name = "Shell (syntax checked)"
source = "main.sh"
compile = "bash -n main.sh"
artifact = "main.sh"
run = "bash main.sh"

[[toolchains]]
id = "shslowc"
name = "Shell (slow compile)"
source = "main.sh"
compile = "sleep 30"
artifact = "main.sh"
run = "bash main.sh"

[[toolchains]]
id = "ghost"
name = "Uninstalled interpreter"
source = "main.g"
run = "no-such-interpreter-zz main.g"
`

func newRegistry(t *testing.T) *langs.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolchains.toml")
	require.NoError(t, os.WriteFile(path, []byte(toolchainsToml), 0o644))
	r, err := langs.LoadRegistry(path)
	require.NoError(t, err)
	return r
}

func newPipeline(t *testing.T, opts ...func(*pipeline.Config)) *pipeline.Pipeline {
	t.Helper()
	cfg := pipeline.Config{
		WorkRoot: t.TempDir(),
		Registry: newRegistry(t),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return pipeline.New(cfg)
}

func strp(s string) *string { return &s }

func inlineTest(id int, in, ans string) api.TestCase {
	return api.TestCase{ID: id, Input: &in, Answer: &ans}
}

func TestRunPass(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "pass-1",
		LangID:     "sh",
		SourceCode: "cat",
		Tests: []api.TestCase{
			inlineTest(1, "1 2\n", "1 2\n"),
			inlineTest(2, "a b\n", "a b\n"),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictPass, res.Verdict)
	assert.Equal(t, 0, res.FirstFailedTest)
	assert.True(t, res.Passed())
	require.Len(t, res.Tests, 2)
	assert.Equal(t, 1, res.Tests[0].TestID)
	assert.Equal(t, 2, res.Tests[1].TestID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRunWrongAnswer(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "wa-1",
		LangID:     "sh",
		SourceCode: "echo 42",
		Tests: []api.TestCase{
			inlineTest(1, "", "42\n"),
			inlineTest(2, "", "41\n"),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictWrongAnswer, res.Verdict)
	assert.Equal(t, 2, res.FirstFailedTest)
	assert.Equal(t, api.VerdictPass, res.Tests[0].Verdict)
	assert.Equal(t, api.VerdictWrongAnswer, res.Tests[1].Verdict)
	assert.Equal(t, "42\n", res.Tests[1].Stdout)
}

func TestRunCompareModes(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "cmp-1",
		LangID:     "sh",
		SourceCode: "echo '1 2 '",
		Tests: []api.TestCase{
			{ID: 1, Input: strp(""), Answer: strp("1 2"), Mode: api.CompareTrim},
			{ID: 2, Input: strp(""), Answer: strp("1.0000004 2"), Mode: api.CompareTokens, FloatTolerance: 1e-6},
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictPass, res.Verdict)
}

func TestRunRuntimeError(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "re-1",
		LangID:     "sh",
		SourceCode: "exit 3",
		Tests:      []api.TestCase{inlineTest(1, "", "")},
	}, report.Discard())

	assert.Equal(t, api.VerdictRuntimeError, res.Verdict)
	assert.Equal(t, int64(3), res.Tests[0].ExitCode)
}

func TestRunUnsupportedLanguage(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "ul-1",
		LangID:     "malbolge",
		SourceCode: "x",
		Tests:      []api.TestCase{inlineTest(1, "", "")},
	}, report.Discard())

	assert.Equal(t, api.VerdictUnsupportedLanguage, res.Verdict)
	assert.Empty(t, res.Tests)
}

func TestRunCompileError(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "ce-1",
		LangID:     "shc",
		SourceCode: "if then fi (",
		Tests: []api.TestCase{
			inlineTest(1, "", ""),
			inlineTest(2, "", ""),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictCompileError, res.Verdict)
	require.NotNil(t, res.Compile)
	assert.NotZero(t, res.Compile.ExitCode)
	assert.NotEmpty(t, res.Compile.Stderr)
	// no test ran; every declared test still has a record
	require.Len(t, res.Tests, 2)
	for _, tr := range res.Tests {
		assert.Equal(t, api.VerdictCompileError, tr.Verdict)
	}
}

func TestRunCompileSuccess(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "cc-1",
		LangID:     "shc",
		SourceCode: "cat",
		Tests:      []api.TestCase{inlineTest(1, "hi\n", "hi\n")},
	}, report.Discard())

	assert.Equal(t, api.VerdictPass, res.Verdict)
	require.NotNil(t, res.Compile)
	assert.Zero(t, res.Compile.ExitCode)
}

// A test that breaches its limit must not stop the tests after it.
func TestRunFailOpenAfterTimeLimit(t *testing.T) {
	cpu := int64(2000)
	wall := int64(400)
	p := newPipeline(t, func(c *pipeline.Config) { c.WallBudget = 30 * time.Second })
	res := p.Run(context.Background(), api.Submission{
		ID:         "tl-1",
		LangID:     "sh",
		SourceCode: `read x; if [ "$x" = "slow" ]; then sleep 10; else echo "$x"; fi`,
		Limits:     &api.LimitOverrides{CpuMs: &cpu, WallMs: &wall},
		Tests: []api.TestCase{
			inlineTest(1, "a\n", "a\n"),
			inlineTest(2, "slow\n", "never\n"),
			inlineTest(3, "b\n", "b\n"),
		},
	}, report.Discard())

	require.Len(t, res.Tests, 3)
	assert.Equal(t, api.VerdictPass, res.Tests[0].Verdict)
	assert.Equal(t, api.VerdictTimeLimit, res.Tests[1].Verdict)
	assert.Equal(t, api.VerdictPass, res.Tests[2].Verdict)
	assert.Equal(t, api.VerdictTimeLimit, res.Verdict)
	assert.Equal(t, 2, res.FirstFailedTest)
}

func TestRunBudgetSkipsRemaining(t *testing.T) {
	p := newPipeline(t, func(c *pipeline.Config) { c.WallBudget = time.Nanosecond })
	res := p.Run(context.Background(), api.Submission{
		ID:         "budget-1",
		LangID:     "sh",
		SourceCode: "cat",
		Tests: []api.TestCase{
			inlineTest(1, "", ""),
			inlineTest(2, "", ""),
		},
	}, report.Discard())

	require.Len(t, res.Tests, 2)
	for _, tr := range res.Tests {
		assert.Equal(t, api.VerdictSkipped, tr.Verdict)
	}
	assert.Equal(t, api.VerdictTimeLimit, res.Verdict)
}

func TestRunMemoryLimitVerdict(t *testing.T) {
	cpu := int64(10000)
	wall := int64(10000)
	mem := int64(32768)
	p := newPipeline(t, func(c *pipeline.Config) { c.WallBudget = 30 * time.Second })
	res := p.Run(context.Background(), api.Submission{
		ID:         "ml-1",
		LangID:     "sh",
		SourceCode: `x=.; while :; do x=$x$x; done`,
		Limits:     &api.LimitOverrides{CpuMs: &cpu, WallMs: &wall, MemKiB: &mem},
		Tests:      []api.TestCase{inlineTest(1, "", "")},
	}, report.Discard())

	assert.Equal(t, api.VerdictMemoryLimit, res.Verdict)
	assert.Equal(t, api.VerdictMemoryLimit, res.Tests[0].Verdict)
	assert.Greater(t, res.Tests[0].MemKiB, int64(32768))
}

// A toolchain whose interpreter is not installed is a judge host problem;
// the submission must not be scored as a runtime error.
func TestRunMissingInterpreter(t *testing.T) {
	p := newPipeline(t)
	res := p.Run(context.Background(), api.Submission{
		ID:         "ghost-1",
		LangID:     "ghost",
		SourceCode: "whatever",
		Tests:      []api.TestCase{inlineTest(1, "", "")},
	}, report.Discard())

	assert.Equal(t, api.VerdictInternalError, res.Verdict)
	assert.Equal(t, api.VerdictInternalError, res.Tests[0].Verdict)
}

func TestRunCancelledDuringCompile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	p := newPipeline(t)
	res := p.Run(ctx, api.Submission{
		ID:         "cc-cancel-1",
		LangID:     "shslowc",
		SourceCode: "cat",
		Tests: []api.TestCase{
			inlineTest(1, "", ""),
			inlineTest(2, "", ""),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictCancelled, res.Verdict)
	// every declared test still gets a record
	require.Len(t, res.Tests, 2)
	for _, tr := range res.Tests {
		assert.Equal(t, api.VerdictCancelled, tr.Verdict)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(t)
	res := p.Run(ctx, api.Submission{
		ID:         "cancel-1",
		LangID:     "sh",
		SourceCode: "cat",
		Tests: []api.TestCase{
			inlineTest(1, "", ""),
			inlineTest(2, "", ""),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictCancelled, res.Verdict)
	for _, tr := range res.Tests {
		assert.Equal(t, api.VerdictCancelled, tr.Verdict)
	}
}

func TestRunURLReferencedContent(t *testing.T) {
	body := "5\n"
	sum := sha256.Sum256([]byte(body))
	sha := hex.EncodeToString(sum[:])

	fs := filestore.New(t.TempDir(), t.TempDir())
	fs.SetDownloadFunc(func(url, path string) error {
		return os.WriteFile(path, []byte(body), 0644)
	})
	go fs.Start()

	p := newPipeline(t, func(c *pipeline.Config) { c.Files = fs })
	res := p.Run(context.Background(), api.Submission{
		ID:         "url-1",
		LangID:     "sh",
		SourceCode: "cat",
		Tests: []api.TestCase{{
			ID:          1,
			InputURL:    strp("fake://in"),
			InputSHA256: &sha,
			Answer:      &body,
		}},
	}, report.Discard())

	assert.Equal(t, api.VerdictPass, res.Verdict)
}

func TestRunPythonSubmission(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	p := newPipeline(t, func(c *pipeline.Config) { c.Registry = langs.NewRegistry() })
	res := p.Run(context.Background(), api.Submission{
		ID:         "py-1",
		LangID:     "python",
		SourceCode: "a, b = map(int, input().split())\nprint(a + b)\n",
		Tests: []api.TestCase{
			inlineTest(1, "1 2\n", "3\n"),
			inlineTest(2, "10 -4\n", "6\n"),
		},
	}, report.Discard())

	assert.Equal(t, api.VerdictPass, res.Verdict)
}

func TestRunCppCompileError(t *testing.T) {
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skip("g++ not installed")
	}
	p := newPipeline(t, func(c *pipeline.Config) { c.Registry = langs.NewRegistry() })
	res := p.Run(context.Background(), api.Submission{
		ID:         "cpp-1",
		LangID:     "cpp",
		SourceCode: "int main( { return 0; }\n",
		Tests:      []api.TestCase{inlineTest(1, "", "")},
	}, report.Discard())

	assert.Equal(t, api.VerdictCompileError, res.Verdict)
	require.NotNil(t, res.Compile)
	assert.NotEmpty(t, res.Compile.Stderr)
}

// recorder captures the reporter event sequence.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) note(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) StartJob(string, int)             { r.note("job_start") }
func (r *recorder) StartCompile()                    { r.note("compile_start") }
func (r *recorder) FinishCompile(*api.CompileResult) { r.note("compile_finish") }
func (r *recorder) ReachTest(int)                    { r.note("test_reach") }
func (r *recorder) SkipTest(int, api.Verdict)        { r.note("test_skip") }
func (r *recorder) FinishTest(api.TestResult)        { r.note("test_finish") }
func (r *recorder) FinishJob(*api.SubmissionResult)  { r.note("job_finish") }

func TestRunEventSequence(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(t)
	p.Run(context.Background(), api.Submission{
		ID:         "events-1",
		LangID:     "shc",
		SourceCode: "cat",
		Tests: []api.TestCase{
			inlineTest(1, "x\n", "x\n"),
			inlineTest(2, "y\n", "y\n"),
		},
	}, rec)

	assert.Equal(t, []string{
		"job_start",
		"compile_start", "compile_finish",
		"test_reach", "test_finish",
		"test_reach", "test_finish",
		"job_finish",
	}, rec.events)
}
