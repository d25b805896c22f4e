// Package natsrep streams judging progress to a NATS subject as JSON
// messages, one per event.
package natsrep

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/report"
)

type Reporter struct {
	nc           *nats.Conn
	subject      string
	submissionID string
}

// New creates a reporter bound to one submission that publishes to subject.
func New(nc *nats.Conn, submissionID string, subject string) *Reporter {
	return &Reporter{nc: nc, subject: subject, submissionID: submissionID}
}

func (r *Reporter) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal progress message", "error", err)
		return
	}
	if err := r.nc.Publish(r.subject, b); err != nil {
		slog.Error("failed to publish progress message", "error", err)
	}
}

func (r *Reporter) StartJob(langID string, numTests int) {
	r.send(api.NewStartJob(r.submissionID, langID, numTests))
}

func (r *Reporter) StartCompile() {
	r.send(api.NewStartCompile(r.submissionID))
}

func (r *Reporter) FinishCompile(c *api.CompileResult) {
	r.send(api.NewFinishCompile(r.submissionID,
		report.TrimCompile(c, api.MaxStreamHeight, api.MaxStreamWidth)))
}

func (r *Reporter) ReachTest(testID int) {
	r.send(api.NewReachTest(r.submissionID, testID))
}

func (r *Reporter) SkipTest(testID int, v api.Verdict) {
	r.send(api.NewSkipTest(r.submissionID, testID, v))
}

func (r *Reporter) FinishTest(res api.TestResult) {
	r.send(api.NewFinishTest(r.submissionID,
		report.TrimResult(res, api.MaxStreamHeight, api.MaxStreamWidth)))
}

func (r *Reporter) FinishJob(res *api.SubmissionResult) {
	r.send(api.NewFinishJob(r.submissionID, res))
}
