package domain

import (
	"encoding/json"
)

// Event types published on the proof event channel
const (
	EventProofRejected = "present-proof/rejected"
	EventProofResult   = "present-proof/presentation-result"
)

// ProofEvent is a message received on the real-time event channel for a
// thread. The channel is best effort: process suspension silently drops it,
// so nothing may depend on these messages for correctness.
type ProofEvent struct {
	Data ProofEventData `json:"data"`
}

// ProofEventData carries the event discriminator and, on a presentation
// result, the revealed attributes.
type ProofEventData struct {
	Type                  string                 `json:"type"`
	RequestedPresentation *RequestedPresentation `json:"requested_presentation,omitempty"`
}

// RequestedPresentation holds the disclosed attributes of a presentation
type RequestedPresentation struct {
	RevealedAttrs RevealedAttrs `json:"revealed_attrs"`
}

// ParseProofEvent decodes an event channel payload
func ParseProofEvent(raw []byte) (*ProofEvent, error) {
	var ev ProofEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// IdentityNumber extracts the identity number revealed by a presentation
// result event, or empty when absent.
func (e *ProofEvent) IdentityNumber() string {
	if e.Data.RequestedPresentation == nil {
		return ""
	}
	return e.Data.RequestedPresentation.RevealedAttrs.Value(AttrIDNumber)
}
