// Package mailstate holds the client-side state machines for composing,
// fetching, deduplicating, selecting and importing mail. Nothing in here
// renders; the terminal front end drives these types and reads their state.
package mailstate

import (
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
)

// FetchPhase is the lifecycle position of a collection fetch.
type FetchPhase int

const (
	FetchIdle FetchPhase = iota
	FetchLoading
	FetchReady
	FetchFailed
)

func (p FetchPhase) String() string {
	switch p {
	case FetchIdle:
		return "idle"
	case FetchLoading:
		return "loading"
	case FetchReady:
		return "ready"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchState is the observable state of an InboxFetcher. Messages is only
// populated in FetchReady.
type FetchState struct {
	Phase    FetchPhase
	Messages []model.Message
	Err      error
}

// Start moves to Loading and drops any previous result.
func (s FetchState) Start() FetchState {
	return FetchState{Phase: FetchLoading}
}

// Succeed moves to Ready holding a copy of messages in the given order.
func (s FetchState) Succeed(messages []model.Message) FetchState {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	return FetchState{Phase: FetchReady, Messages: out}
}

// Fail moves to Failed. No partial data is retained.
func (s FetchState) Fail(err error) FetchState {
	return FetchState{Phase: FetchFailed, Err: err}
}

// Loading reports whether a fetch is outstanding.
func (s FetchState) Loading() bool { return s.Phase == FetchLoading }

// SubmitPhase is the lifecycle position of a submission.
type SubmitPhase int

const (
	SubmitIdle SubmitPhase = iota
	SubmitSending
	SubmitCompleted
)

func (p SubmitPhase) String() string {
	switch p {
	case SubmitIdle:
		return "idle"
	case SubmitSending:
		return "sending"
	case SubmitCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// SubmissionResult is the terminal outcome of a submission. Message is the
// user-facing text; Err keeps the cause for logging and is nil on success.
type SubmissionResult struct {
	OK      bool
	Message string
	Err     error
}

// Success builds a successful result.
func Success(message string) SubmissionResult {
	return SubmissionResult{OK: true, Message: message}
}

// Failure builds a failed result.
func Failure(reason string, err error) SubmissionResult {
	return SubmissionResult{Message: reason, Err: err}
}

// Kind classifies the failure cause.
func (r SubmissionResult) Kind() relay.ErrorKind {
	return relay.Classify(r.Err)
}

// SubmitStatus is the observable state of a Composer or Importer.
type SubmitStatus struct {
	Phase  SubmitPhase
	Result SubmissionResult
}

// Begin moves to Sending. It refuses (returning s unchanged and false)
// when a submission is already in flight.
func (s SubmitStatus) Begin() (SubmitStatus, bool) {
	if s.Phase == SubmitSending {
		return s, false
	}
	return SubmitStatus{Phase: SubmitSending}, true
}

// Complete moves to Completed with r.
func (s SubmitStatus) Complete(r SubmissionResult) SubmitStatus {
	return SubmitStatus{Phase: SubmitCompleted, Result: r}
}

// Sending reports whether a submission is in flight.
func (s SubmitStatus) Sending() bool { return s.Phase == SubmitSending }

// Succeeded reports whether the last submission completed successfully.
func (s SubmitStatus) Succeeded() bool {
	return s.Phase == SubmitCompleted && s.Result.OK
}

// Failed reports whether the last submission completed with a failure.
func (s SubmitStatus) Failed() bool {
	return s.Phase == SubmitCompleted && !s.Result.OK
}

// Text is the status line shown next to the triggering control.
func (s SubmitStatus) Text() string {
	switch s.Phase {
	case SubmitSending:
		return "Sending..."
	case SubmitCompleted:
		return s.Result.Message
	default:
		return ""
	}
}
