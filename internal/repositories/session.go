package repositories

import (
	"context"
	"time"

	"github.com/nppfbt/ndi-verifier/internal/cache"
	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/log"
)

// Sessions outlive the poll deadline by a wide margin: the user may sit in
// the wallet app for a long time before coming back.
const sessionTTL = 24 * time.Hour

// Persisted field keys. They are written individually so a partial load
// (thread id without deep link) is representable, and cleared together.
const (
	keyThreadID = "ndi_threadId"
	keyDeepLink = "ndi_deeplink"
	keyFlow     = "ndi_flow"
)

type sessionCached struct {
	cache cache.Cache
}

// NewSessionCached returns a cache backed session repository
func NewSessionCached(c cache.Cache) ports.SessionRepository {
	return &sessionCached{cache: c}
}

// Save overwrites the persisted session fields
func (c *sessionCached) Save(ctx context.Context, session *domain.VerificationSession) error {
	if err := c.cache.Set(ctx, keyThreadID, session.ThreadID, sessionTTL); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, keyDeepLink, session.DeepLink, sessionTTL); err != nil {
		return err
	}
	return c.cache.Set(ctx, keyFlow, string(session.FlowKind), sessionTTL)
}

// Load returns the persisted session or nil when no thread id is stored.
// Missing secondary fields are tolerated: the deep link is only needed to
// relaunch the wallet, never to resolve the outcome.
func (c *sessionCached) Load(ctx context.Context) *domain.VerificationSession {
	var threadID string
	if found := c.cache.Get(ctx, keyThreadID, &threadID); !found || threadID == "" {
		return nil
	}

	session := &domain.VerificationSession{ThreadID: threadID}

	var deepLink string
	if c.cache.Get(ctx, keyDeepLink, &deepLink) {
		session.DeepLink = deepLink
	}
	var flow string
	if c.cache.Get(ctx, keyFlow, &flow) {
		session.FlowKind = domain.FlowKind(flow)
	}

	return session
}

// Clear removes all persisted session fields
func (c *sessionCached) Clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{keyThreadID, keyDeepLink, keyFlow} {
		if err := c.cache.Delete(ctx, key); err != nil && firstErr == nil {
			log.Error(ctx, "clearing persisted session field", "err", err, "key", key)
			firstErr = err
		}
	}
	return firstErr
}
