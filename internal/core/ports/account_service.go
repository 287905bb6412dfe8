package ports

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// AccountService performs the downstream account checks once an identity has
// been validated.
type AccountService interface {
	// CheckAccount resolves the identity number to a pensioner account,
	// applying the GET-then-POST fallback strategy. A disabled account is a
	// terminal error with no fallback.
	CheckAccount(ctx context.Context, cid string) (*domain.PensionerAccount, error)
	// VerifyLiveness reports whether the presented identity matches the
	// stored one and notifies the liveliness endpoint
	VerifyLiveness(ctx context.Context, storedCID, presentedCID, pensionID string) error
}
