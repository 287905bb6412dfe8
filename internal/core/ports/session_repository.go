package ports

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// SessionRepository persists the active verification session so the flow
// survives process suspension or death. There is at most one active session
// per instance: Save overwrites any prior one.
type SessionRepository interface {
	// Save overwrites the persisted session. Side effect only, no
	// reachability validation.
	Save(ctx context.Context, session *domain.VerificationSession) error
	// Load returns whatever subset of fields is persisted, or nil when there
	// is no resumable session. Storage failure is treated as nil.
	Load(ctx context.Context) *domain.VerificationSession
	// Clear removes all persisted fields. Called only after a terminal
	// outcome or an explicit restart.
	Clear(ctx context.Context) error
}
