// Package termrep prints judging progress to the terminal.
package termrep

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/arbiter-oj/arbiter/api"
)

type Reporter struct {
	submissionID string
	startedAt    time.Time
}

func New(submissionID string) *Reporter {
	return &Reporter{submissionID: submissionID, startedAt: time.Now()}
}

var (
	passC = color.New(color.FgGreen)
	failC = color.New(color.FgRed)
	infoC = color.New(color.FgCyan)
)

func (t *Reporter) StartJob(langID string, numTests int) {
	infoC.Printf("== %s: judging (%s, %d tests) ==\n", t.submissionID, langID, numTests)
}

func (t *Reporter) StartCompile() {
	fmt.Println("-- compiling --")
}

func (t *Reporter) FinishCompile(c *api.CompileResult) {
	if c == nil {
		return
	}
	fmt.Printf("-- compiled: exit=%d cpu=%dms wall=%dms mem=%dKiB --\n",
		c.ExitCode, c.CpuMs, c.WallMs, c.MemKiB)
	if c.ExitCode != 0 && c.Stderr != "" {
		failC.Println(c.Stderr)
	}
}

func (t *Reporter) ReachTest(testID int) {
	fmt.Printf("-> test %d\n", testID)
}

func (t *Reporter) SkipTest(testID int, v api.Verdict) {
	fmt.Printf("<- test %d: %s\n", testID, v)
}

func (t *Reporter) FinishTest(res api.TestResult) {
	c := failC
	if res.Verdict == api.VerdictPass {
		c = passC
	}
	c.Printf("<- test %d: %s", res.TestID, res.Verdict)
	fmt.Printf(" (exit=%d cpu=%dms wall=%dms mem=%dKiB)\n",
		res.ExitCode, res.CpuMs, res.WallMs, res.MemKiB)
}

func (t *Reporter) FinishJob(res *api.SubmissionResult) {
	dur := time.Since(t.startedAt).Round(time.Millisecond)
	c := failC
	if res.Verdict == api.VerdictPass {
		c = passC
	}
	c.Printf("== %s: %s", t.submissionID, res.Verdict)
	fmt.Printf(" in %s (max cpu=%dms, max mem=%dKiB) ==\n",
		dur, res.MaxCpuMs, res.MaxMemKiB)
}
