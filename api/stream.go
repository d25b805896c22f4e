package api

import "time"

// MsgType tags streaming progress messages emitted while a submission runs.
type MsgType string

const (
	StartJobMsg      MsgType = "job_start"
	StartCompileMsg  MsgType = "compile_start"
	FinishCompileMsg MsgType = "compile_finish"
	ReachTestMsg     MsgType = "test_reach"
	SkipTestMsg      MsgType = "test_skip"
	FinishTestMsg    MsgType = "test_finish"
	FinishJobMsg     MsgType = "job_finish"
)

// Captured stream excerpts are clipped to this rectangle before streaming.
const (
	MaxStreamHeight = 40
	MaxStreamWidth  = 80
)

// Header is common to all streaming messages.
type Header struct {
	SubmissionID string  `json:"submission_id"`
	MsgType      MsgType `json:"msg_type"`
}

type StartJob struct {
	Header
	LangID    string `json:"lang_id"`
	NumTests  int    `json:"num_tests"`
	StartedAt string `json:"started_at"`
}

type StartCompile struct {
	Header
}

type FinishCompile struct {
	Header
	Compile *CompileResult `json:"compile"`
}

type ReachTest struct {
	Header
	TestID int `json:"test_id"`
}

type SkipTest struct {
	Header
	TestID  int     `json:"test_id"`
	Verdict Verdict `json:"verdict"`
}

type FinishTest struct {
	Header
	Result TestResult `json:"result"`
}

type FinishJob struct {
	Header
	Result *SubmissionResult `json:"result"`
}

func NewHeader(submissionID string, msgType MsgType) Header {
	return Header{SubmissionID: submissionID, MsgType: msgType}
}

func NewStartJob(submissionID, langID string, numTests int) StartJob {
	return StartJob{
		Header:    NewHeader(submissionID, StartJobMsg),
		LangID:    langID,
		NumTests:  numTests,
		StartedAt: time.Now().Format(time.RFC3339),
	}
}

func NewStartCompile(submissionID string) StartCompile {
	return StartCompile{Header: NewHeader(submissionID, StartCompileMsg)}
}

func NewFinishCompile(submissionID string, compile *CompileResult) FinishCompile {
	return FinishCompile{
		Header:  NewHeader(submissionID, FinishCompileMsg),
		Compile: compile,
	}
}

func NewReachTest(submissionID string, testID int) ReachTest {
	return ReachTest{Header: NewHeader(submissionID, ReachTestMsg), TestID: testID}
}

func NewSkipTest(submissionID string, testID int, verdict Verdict) SkipTest {
	return SkipTest{
		Header:  NewHeader(submissionID, SkipTestMsg),
		TestID:  testID,
		Verdict: verdict,
	}
}

func NewFinishTest(submissionID string, result TestResult) FinishTest {
	return FinishTest{Header: NewHeader(submissionID, FinishTestMsg), Result: result}
}

func NewFinishJob(submissionID string, result *SubmissionResult) FinishJob {
	return FinishJob{Header: NewHeader(submissionID, FinishJobMsg), Result: result}
}
