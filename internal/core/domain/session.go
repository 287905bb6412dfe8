package domain

import (
	"time"
)

// FlowKind distinguishes which downstream verification applies once the proof
// has been presented.
type FlowKind string

// Supported verification flows
const (
	FlowLogin    FlowKind = "login"
	FlowLiveness FlowKind = "liveness"
)

// SessionState is the lifecycle state of a verification session
type SessionState string

// Verification session states. Validated, Rejected and TimedOut are terminal.
// Failed is reachable from any state on unrecoverable transport or parse
// failure and is reported to callers as TimedOut, but logged distinctly.
const (
	StateCreated        SessionState = "created"
	StateAwaitingWallet SessionState = "awaiting_wallet"
	StateResumed        SessionState = "resumed"
	StatePolling        SessionState = "polling"
	StateValidated      SessionState = "validated"
	StateRejected       SessionState = "rejected"
	StateTimedOut       SessionState = "timed_out"
	StateFailed         SessionState = "failed"
)

// VerificationSession represents one in-flight or resumed identity proof
// attempt. ThreadID is the correlation key for webhook lookups and event
// channel subscriptions and is never reused across sessions. DeepLink is only
// valid for the thread it was issued with.
type VerificationSession struct {
	ThreadID  string
	DeepLink  string
	ProofURL  string
	FlowKind  FlowKind
	State     SessionState
	CreatedAt time.Time
}

// Terminal tells whether the session reached a terminal state
func (s *VerificationSession) Terminal() bool {
	switch s.State {
	case StateValidated, StateRejected, StateTimedOut:
		return true
	}
	return false
}

// Resumable tells whether a persisted session can be resumed. Only the thread
// id is required: the deep link is needed to relaunch the wallet, not to
// resolve the outcome.
func (s *VerificationSession) Resumable() bool {
	return s != nil && s.ThreadID != "" && !s.Terminal()
}
