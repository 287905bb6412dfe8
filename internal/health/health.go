package health

import (
	"context"

	"github.com/nppfbt/ndi-verifier/internal/log"
)

// Ping is anything that can report liveness of a dependency
type Ping interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to the Ping interface
type PingFunc func(ctx context.Context) error

// Ping implements Ping
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Status aggregates the health of the service dependencies
type Status struct {
	pingers map[string]Ping
}

// New returns a Status instance over the named pingers
func New(pingers map[string]Ping) *Status {
	return &Status{pingers: pingers}
}

// Status returns whether each monitored dependency is reachable
func (h *Status) Status(ctx context.Context) map[string]bool {
	m := make(map[string]bool, len(h.pingers))
	for key, val := range h.pingers {
		m[key] = true
		if err := val.Ping(ctx); err != nil {
			log.Debug(ctx, "dependency ping failed", "dependency", key, "err", err)
			m[key] = false
		}
	}
	return m
}
