package domain

import (
	"encoding/json"
	"strings"
)

// Verification result values delivered through the webhook details record.
// Rejections are matched by substring since the backend has shipped several
// variants ("Rejected", "presentation-rejected", ...).
const (
	ResultProofValidated = "ProofValidated"
	resultRejectedMark   = "reject"
)

// AttrIDNumber is the revealed attribute holding the citizen identity number
const AttrIDNumber = "ID Number"

// WebhookDetails is the backend-held record of the asynchronous verification
// result for a thread. RevealedAttrs arrives as a JSON-encoded string.
type WebhookDetails struct {
	ThreadID           string `json:"threadId"`
	VerificationResult string `json:"verificationResult,omitempty"`
	RevealedAttrs      string `json:"revealedAttrs,omitempty"`
}

// Rejected tells whether the record carries a rejection
func (w *WebhookDetails) Rejected() bool {
	return strings.Contains(strings.ToLower(w.VerificationResult), resultRejectedMark)
}

// Validated tells whether the record carries a validated proof
func (w *WebhookDetails) Validated() bool {
	return w.VerificationResult == ResultProofValidated
}

// IdentityNumber extracts the identity number from the revealed attributes.
// It returns an empty string when the attributes are missing or cannot be
// decoded: a validated record without an extractable identity number is
// expected transiently on partial delivery and callers must keep polling.
func (w *WebhookDetails) IdentityNumber() string {
	if w.RevealedAttrs == "" {
		return ""
	}
	var attrs RevealedAttrs
	if err := json.Unmarshal([]byte(w.RevealedAttrs), &attrs); err != nil {
		return ""
	}
	return attrs.Value(AttrIDNumber)
}

// RevealedAttrs is the subset of credential fields the wallet disclosed,
// keyed by attribute name.
type RevealedAttrs map[string][]struct {
	Value string `json:"value"`
}

// Value returns the first value of the named attribute, or empty
func (r RevealedAttrs) Value(name string) string {
	values, ok := r[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0].Value
}
