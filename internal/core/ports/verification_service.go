package ports

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// VerificationService drives one identity proof attempt end to end: request
// the challenge, register the callback, hand off to the wallet and resolve
// the outcome through the event channel and the polling fallback.
type VerificationService interface {
	// Start begins a new verification attempt for the given flow
	Start(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error)
	// Resume reloads a persisted session after an app wake-up and restarts
	// resolution with a fresh poll deadline
	Resume(ctx context.Context) (*domain.VerificationSession, error)
	// Restart cancels any in-flight attempt, clears the persisted session and
	// starts a new one
	Restart(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error)
	// Cancel tears down the poll loop and the event subscription without
	// emitting an outcome
	Cancel()
	// Outcome returns the channel on which the single terminal outcome of the
	// current session is delivered
	Outcome() <-chan domain.ProofOutcome
	// Session returns the session currently driven by the service, nil when
	// idle
	Session() *domain.VerificationSession
}
