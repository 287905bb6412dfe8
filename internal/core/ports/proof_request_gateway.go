package ports

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// ProofRequestGateway obtains proof challenges from the NDI backend and
// manages the webhook callback registration for a thread.
type ProofRequestGateway interface {
	// RequestChallenge asks the backend for a new proof request for the given
	// flow. The returned session carries the thread id, the proof request url
	// and a deep link guaranteed to include the return url.
	RequestChallenge(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error)
	// RegisterCallback subscribes the thread to the webhook channel and sets
	// the delivery details. It is idempotent and safe to repeat on every
	// resume. A false return is non fatal: the polling fallback does not
	// require it, it only improves latency and reliability.
	RegisterCallback(ctx context.Context, threadID string) bool
	// WebhookDetails fetches the backend-held verification result for a
	// thread.
	WebhookDetails(ctx context.Context, threadID string) (*domain.WebhookDetails, error)
}
