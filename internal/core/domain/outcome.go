package domain

// OutcomeKind classifies the terminal result of a verification session
type OutcomeKind string

// Proof outcome kinds
const (
	OutcomeValidated OutcomeKind = "validated"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomePending   OutcomeKind = "pending"
	OutcomeTimedOut  OutcomeKind = "timed_out"
	OutcomeError     OutcomeKind = "error"
)

// ProofOutcome is the result the resolver hands to the surrounding
// application. One VerificationSession produces exactly one terminal
// ProofOutcome.
type ProofOutcome struct {
	Kind           OutcomeKind `json:"kind"`
	ThreadID       string      `json:"threadId"`
	FlowKind       FlowKind    `json:"flowKind"`
	IdentityNumber string      `json:"identityNumber,omitempty"`
	RawDetail      string      `json:"rawDetail,omitempty"`
}

// Terminal tells whether the outcome ends the session
func (o ProofOutcome) Terminal() bool {
	switch o.Kind {
	case OutcomeValidated, OutcomeRejected, OutcomeTimedOut:
		return true
	}
	return false
}
