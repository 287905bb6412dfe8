package ports

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// PensionerGateway resolves a verified identity number to a pensioner
// account. It is a black box REST collaborator, outside the verification
// core.
type PensionerGateway interface {
	// Pensioner fetches the account by identity number
	Pensioner(ctx context.Context, cid string) (*domain.PensionerAccount, error)
	// Validate is the fallback lookup used when Pensioner fails or returns a
	// malformed record
	Validate(ctx context.Context, cid string) (*domain.PensionerAccount, error)
	// Liveliness reports the liveness check result for a pensioner
	Liveliness(ctx context.Context, pensionID, cid, status string) error
}
