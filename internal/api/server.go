package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nppfbt/ndi-verifier/internal/config"
	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/core/services"
	"github.com/nppfbt/ndi-verifier/internal/gateways"
	"github.com/nppfbt/ndi-verifier/internal/health"
	"github.com/nppfbt/ndi-verifier/internal/log"
	"github.com/nppfbt/ndi-verifier/internal/repositories"
)

// Messages surfaced to the UI. Terminal outcomes reach the user exactly once
// through the status result, never through two competing channels.
const (
	msgChallengeUnavailable = "Failed to obtain proof-request"
	msgAccountDisabled      = "Your User Account has been disabled, Please contact NPPF admin for further assistance."
	msgCIDMismatch          = "CID mismatched. Please try again."
	msgNoSession            = "No verification in progress"
)

// Server exposes the verification flow to the surrounding application
type Server struct {
	cfg          *config.Configuration
	verification ports.VerificationService
	accounts     ports.AccountService
	qrStore      ports.QrStoreService
	profiles     repositories.ProfileRepository
	health       *health.Status

	mx         sync.Mutex
	lastResult *ResultResponse
}

// NewServer creates the http server surface
func NewServer(cfg *config.Configuration, verification ports.VerificationService, accounts ports.AccountService, qrStore ports.QrStoreService, profiles repositories.ProfileRepository, status *health.Status) *Server {
	return &Server{
		cfg:          cfg,
		verification: verification,
		accounts:     accounts,
		qrStore:      qrStore,
		profiles:     profiles,
		health:       status,
	}
}

// Routes mounts the api on the router
func (s *Server) Routes(mux *chi.Mux) {
	mux.Route("/v1", func(r chi.Router) {
		r.Post("/verification/login", s.startLogin)
		r.Post("/verification/liveness", s.startLiveness)
		r.Post("/verification/resume", s.resume)
		r.Post("/verification/restart", s.restart)
		r.Get("/verification/status", s.status)
		r.Get("/qr-store", s.qrCode)
	})
	mux.Get("/status", s.healthStatus)
}

// Watch consumes terminal outcomes and runs the downstream account checks.
// It blocks until the context is cancelled; run it once, next to the http
// server.
func (s *Server) Watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case outcome, ok := <-s.verification.Outcome():
			if !ok {
				return
			}
			s.handleOutcome(ctx, outcome)
		}
	}
}

func (s *Server) handleOutcome(ctx context.Context, outcome domain.ProofOutcome) {
	result := &ResultResponse{Kind: string(outcome.Kind)}

	switch outcome.Kind {
	case domain.OutcomeValidated:
		s.handleValidated(ctx, outcome, result)
	case domain.OutcomeRejected:
		result.Message = "Proof request was denied"
	case domain.OutcomeTimedOut:
		result.Message = "Verification timed out. Please try again."
		if outcome.RawDetail != "" {
			log.Error(ctx, "verification attempt failed", "detail", outcome.RawDetail, "threadID", outcome.ThreadID)
		}
	}

	s.mx.Lock()
	s.lastResult = result
	s.mx.Unlock()
}

func (s *Server) handleValidated(ctx context.Context, outcome domain.ProofOutcome, result *ResultResponse) {
	switch outcome.FlowKind {
	case domain.FlowLiveness:
		storedCID, pensionID := s.profiles.Identity(ctx)
		if err := s.accounts.VerifyLiveness(ctx, storedCID, outcome.IdentityNumber, pensionID); err != nil {
			result.Kind = string(domain.OutcomeError)
			if errors.Is(err, services.ErrCIDMismatch) {
				result.Message = msgCIDMismatch
			} else {
				result.Message = "Liveliness verification failed."
			}
			return
		}
		result.IdentityNumber = outcome.IdentityNumber
		result.Message = "Liveliness verified successfully"

	default:
		account, err := s.accounts.CheckAccount(ctx, outcome.IdentityNumber)
		if err != nil {
			result.Kind = string(domain.OutcomeError)
			if errors.Is(err, services.ErrAccountDisabled) {
				result.Message = msgAccountDisabled
				if account != nil {
					result.PensionStatus = account.PensionStatus
				}
			} else {
				result.Message = "Unable to verify pensioner."
			}
			return
		}

		_, pensionID := s.profiles.Identity(ctx)
		if err := s.profiles.SaveIdentity(ctx, outcome.IdentityNumber, pensionID); err != nil {
			log.Error(ctx, "saving confirmed identity", "err", err)
		}
		result.IdentityNumber = outcome.IdentityNumber
		result.PensionStatus = account.PensionStatus
	}
}

func (s *Server) startLogin(w http.ResponseWriter, r *http.Request) {
	s.start(w, r, domain.FlowLogin)
}

func (s *Server) startLiveness(w http.ResponseWriter, r *http.Request) {
	s.start(w, r, domain.FlowLiveness)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request, flow domain.FlowKind) {
	ctx := r.Context()

	s.clearResult()
	session, err := s.verification.Start(ctx, flow)
	if err != nil {
		log.Error(ctx, "starting verification", "err", err, "flow", flow)
		if errors.Is(err, gateways.ErrChallengeUnavailable) {
			writeError(w, http.StatusBadGateway, msgChallengeUnavailable)
			return
		}
		writeError(w, http.StatusInternalServerError, msgChallengeUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionWithQR(ctx, session))
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := s.verification.Resume(ctx)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSession) {
			writeError(w, http.StatusNotFound, msgNoSession)
			return
		}
		log.Error(ctx, "resuming verification", "err", err)
		writeError(w, http.StatusInternalServerError, "Unable to resume verification")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session, ""))
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flow := domain.FlowKind(r.URL.Query().Get("flow"))
	if flow != domain.FlowLiveness {
		flow = domain.FlowLogin
	}

	s.clearResult()
	session, err := s.verification.Restart(ctx, flow)
	if err != nil {
		log.Error(ctx, "restarting verification", "err", err, "flow", flow)
		writeError(w, http.StatusBadGateway, msgChallengeUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionWithQR(ctx, session))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mx.Lock()
	result := s.lastResult
	s.mx.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Session: toSessionResponse(s.verification.Session(), ""),
		Result:  result,
	})
}

func (s *Server) qrCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid qr code id")
		return
	}

	body, err := s.qrStore.Find(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "qr code not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) healthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Status(r.Context()))
}

// sessionWithQR stores the proof request body and decorates the session
// response with the short QR link
func (s *Server) sessionWithQR(ctx context.Context, session *domain.VerificationSession) *SessionResponse {
	qrLink := ""
	if session.ProofURL != "" {
		id, err := s.qrStore.Store(ctx, []byte(session.ProofURL), services.DefaultQRBodyTTL)
		if err == nil {
			qrLink = s.qrStore.ToURL(s.cfg.ServerUrl, id)
		} else {
			log.Error(ctx, "storing qr code body", "err", err)
		}
	}
	return toSessionResponse(session, qrLink)
}

func (s *Server) clearResult() {
	s.mx.Lock()
	s.lastResult = nil
	s.mx.Unlock()
}
