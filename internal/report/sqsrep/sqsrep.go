// Package sqsrep streams judging progress to an SQS response queue.
package sqsrep

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/report"
)

type Reporter struct {
	sqsClient    *sqs.Client
	queueUrl     string
	submissionID string
}

// New creates a reporter bound to one submission that sends every progress
// event to the response queue at queueUrl.
func New(client *sqs.Client, submissionID string, queueUrl string) *Reporter {
	return &Reporter{
		sqsClient:    client,
		queueUrl:     queueUrl,
		submissionID: submissionID,
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
