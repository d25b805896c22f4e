// Package report defines the streaming progress interface a pipeline feeds
// while it judges one submission. Backends publish the events to a terminal,
// a NATS subject or an SQS queue; a reporter instance is bound to a single
// submission for its lifetime.
package report

import "github.com/arbiter-oj/arbiter/api"

type Reporter interface {
	StartJob(langID string, numTests int)

	StartCompile()
	FinishCompile(c *api.CompileResult)

	ReachTest(testID int)
	SkipTest(testID int, v api.Verdict)
	FinishTest(res api.TestResult)

	FinishJob(res *api.SubmissionResult)
}

// Multi fans every event out to each reporter in order.
type Multi []Reporter

func (m Multi) StartJob(langID string, numTests int) {
	for _, r := range m {
		r.StartJob(langID, numTests)
	}
}

func (m Multi) StartCompile() {
	for _, r := range m {
		r.StartCompile()
	}
}

func (m Multi) FinishCompile(c *api.CompileResult) {
	for _, r := range m {
		r.FinishCompile(c)
	}
}

func (m Multi) ReachTest(testID int) {
	for _, r := range m {
		r.ReachTest(testID)
	}
}

func (m Multi) SkipTest(testID int, v api.Verdict) {
	for _, r := range m {
		r.SkipTest(testID, v)
	}
}

func (m Multi) FinishTest(res api.TestResult) {
	for _, r := range m {
		r.FinishTest(res)
	}
}

func (m Multi) FinishJob(res *api.SubmissionResult) {
	for _, r := range m {
		r.FinishJob(res)
	}
}

type discard struct{}

func (discard) StartJob(string, int)              {}
func (discard) StartCompile()                     {}
func (discard) FinishCompile(*api.CompileResult)  {}
func (discard) ReachTest(int)                     {}
func (discard) SkipTest(int, api.Verdict)         {}
func (discard) FinishTest(api.TestResult)         {}
func (discard) FinishJob(*api.SubmissionResult)   {}

// Discard returns a reporter that drops every event.
func Discard() Reporter { return discard{} }
