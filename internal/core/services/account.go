package services

import (
	"context"
	"fmt"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/log"
)

// AccountService resolves a verified identity number to a pensioner account
// and performs the liveness reconciliation. It implements the account lookup
// as an ordered strategy list: a strategy that fails advances to the next
// one, but a strategy that answers decides the attempt.
type AccountService struct {
	gateway ports.PensionerGateway
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(gateway ports.PensionerGateway) *AccountService {
	return &AccountService{gateway: gateway}
}

type accountLookup struct {
	name string
	fn   func(ctx context.Context, cid string) (*domain.PensionerAccount, error)
}

// CheckAccount applies the GET-then-POST lookup strategies in order. A
// disabled account is terminal the moment any strategy reports it: no
// fallback is attempted, since the account state will not differ between
// endpoints.
func (s *AccountService) CheckAccount(ctx context.Context, cid string) (*domain.PensionerAccount, error) {
	strategies := []accountLookup{
		{name: "pensioner-get", fn: s.gateway.Pensioner},
		{name: "pensioner-validate", fn: s.gateway.Validate},
	}

	var lastErr error
	for _, strategy := range strategies {
		account, err := strategy.fn(ctx, cid)
		if err != nil {
			log.Warn(ctx, "account lookup failed, advancing to next strategy", "strategy", strategy.name, "err", err)
			lastErr = err
			continue
		}

		if !account.Active() {
			log.Info(ctx, "account disabled", "strategy", strategy.name, "userStatus", account.UserStatus)
			return account, ErrAccountDisabled
		}
		return account, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrAccountInvalid, lastErr)
}

// VerifyLiveness compares the presented identity number against the stored
// one and reports the result to the liveliness endpoint. The mismatch is
// reported to the backend either way, then surfaced to the caller.
func (s *AccountService) VerifyLiveness(ctx context.Context, storedCID, presentedCID, pensionID string) error {
	status := domain.LivenessValid
	if storedCID != "" && storedCID != presentedCID {
		status = domain.LivenessInvalid
	}

	err := s.gateway.Liveliness(ctx, pensionID, presentedCID, status)

	if status == domain.LivenessInvalid {
		if err != nil {
			log.Warn(ctx, "reporting liveliness mismatch failed", "err", err)
		}
		return ErrCIDMismatch
	}
	if err != nil {
		return err
	}

	log.Info(ctx, "liveliness verified", "pensionID", pensionID)
	return nil
}
