package api

import (
	"encoding/json"
	"net/http"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
)

// SessionResponse is the view of a verification session handed to the UI.
// The QR code link points at the qr-store endpoint so the payload is not
// embedded in the QR itself.
type SessionResponse struct {
	ThreadID   string `json:"threadId"`
	DeepLink   string `json:"deepLink,omitempty"`
	QrCodeLink string `json:"qrCodeLink,omitempty"`
	Flow       string `json:"flow"`
	State      string `json:"state"`
}

// ResultResponse is the terminal result of the last resolved session
type ResultResponse struct {
	Kind           string `json:"kind"`
	IdentityNumber string `json:"identityNumber,omitempty"`
	PensionStatus  string `json:"pensionStatus,omitempty"`
	Message        string `json:"message,omitempty"`
}

// StatusResponse reports the current session and the last terminal result
type StatusResponse struct {
	Session *SessionResponse `json:"session,omitempty"`
	Result  *ResultResponse  `json:"result,omitempty"`
}

// ErrorResponse is the generic error body
type ErrorResponse struct {
	Message string `json:"message"`
}

func toSessionResponse(session *domain.VerificationSession, qrCodeLink string) *SessionResponse {
	if session == nil {
		return nil
	}
	return &SessionResponse{
		ThreadID:   session.ThreadID,
		DeepLink:   session.DeepLink,
		QrCodeLink: qrCodeLink,
		Flow:       string(session.FlowKind),
		State:      string(session.State),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}
