package repositories

import (
	"context"
	"time"

	"github.com/nppfbt/ndi-verifier/internal/cache"
)

// Mirrors of the device-local profile fields the verification flow needs:
// the identity number confirmed at login and the pension account id.
const (
	keyCIDNumber = "cidNumber"
	keyPensionID = "pensionId"
)

// The profile must outlive any single verification attempt: the liveness flow
// compares against the identity confirmed at login, which may be months old.
// An explicit TTL is used because the redis backend cannot store without one.
const profileTTL = 365 * 24 * time.Hour

// ProfileRepository keeps the identity confirmed at login so the liveness
// flow can compare the next presentation against it.
type ProfileRepository interface {
	SaveIdentity(ctx context.Context, cid, pensionID string) error
	Identity(ctx context.Context) (cid, pensionID string)
	Clear(ctx context.Context) error
}

type profileCached struct {
	cache cache.Cache
}

// NewProfileCached returns a cache backed profile repository
func NewProfileCached(c cache.Cache) ProfileRepository {
	return &profileCached{cache: c}
}

func (c *profileCached) SaveIdentity(ctx context.Context, cid, pensionID string) error {
	if err := c.cache.Set(ctx, keyCIDNumber, cid, profileTTL); err != nil {
		return err
	}
	return c.cache.Set(ctx, keyPensionID, pensionID, profileTTL)
}

func (c *profileCached) Identity(ctx context.Context) (string, string) {
	var cid, pensionID string
	c.cache.Get(ctx, keyCIDNumber, &cid)
	c.cache.Get(ctx, keyPensionID, &pensionID)
	return cid, pensionID
}

func (c *profileCached) Clear(ctx context.Context) error {
	if err := c.cache.Delete(ctx, keyCIDNumber); err != nil {
		return err
	}
	return c.cache.Delete(ctx, keyPensionID)
}
