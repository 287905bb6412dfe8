package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nppfbt/ndi-verifier/internal/config"
	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/services"
	"github.com/nppfbt/ndi-verifier/internal/health"
)

type fakeVerification struct {
	session  *domain.VerificationSession
	startErr error
	outcomes chan domain.ProofOutcome
}

func newFakeVerification() *fakeVerification {
	return &fakeVerification{outcomes: make(chan domain.ProofOutcome, 1)}
}

func (f *fakeVerification) Start(_ context.Context, flow domain.FlowKind) (*domain.VerificationSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.session = &domain.VerificationSession{
		ThreadID: "thread-1",
		DeepLink: "https://bhutanndi.app.link/proof?returnUrl=ngayoe%3A%2F%2F",
		ProofURL: "https://backend/proof-request-url",
		FlowKind: flow,
		State:    domain.StateAwaitingWallet,
	}
	return f.session, nil
}

func (f *fakeVerification) Resume(_ context.Context) (*domain.VerificationSession, error) {
	if f.session == nil {
		return nil, services.ErrNoActiveSession
	}
	f.session.State = domain.StateResumed
	return f.session, nil
}

func (f *fakeVerification) Restart(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error) {
	f.session = nil
	return f.Start(ctx, flow)
}

func (f *fakeVerification) Cancel() { f.session = nil }

func (f *fakeVerification) Outcome() <-chan domain.ProofOutcome { return f.outcomes }

func (f *fakeVerification) Session() *domain.VerificationSession { return f.session }

type fakeAccounts struct {
	account     *domain.PensionerAccount
	checkErr    error
	livenessErr error
}

func (f *fakeAccounts) CheckAccount(_ context.Context, _ string) (*domain.PensionerAccount, error) {
	return f.account, f.checkErr
}

func (f *fakeAccounts) VerifyLiveness(_ context.Context, _, _, _ string) error {
	return f.livenessErr
}

type fakeQRStore struct {
	mx     sync.Mutex
	bodies map[uuid.UUID][]byte
}

func newFakeQRStore() *fakeQRStore {
	return &fakeQRStore{bodies: map[uuid.UUID][]byte{}}
}

func (f *fakeQRStore) Find(_ context.Context, id uuid.UUID) ([]byte, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	body, ok := f.bodies[id]
	if !ok {
		return nil, services.ErrQRCodeLinkNotFound
	}
	return body, nil
}

func (f *fakeQRStore) Store(_ context.Context, body []byte, _ time.Duration) (uuid.UUID, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	id := uuid.New()
	f.bodies[id] = body
	return id, nil
}

func (f *fakeQRStore) ToURL(hostURL string, id uuid.UUID) string {
	return hostURL + "/v1/qr-store?id=" + id.String()
}

type fakeProfiles struct {
	cid       string
	pensionID string
}

func (f *fakeProfiles) SaveIdentity(_ context.Context, cid, pensionID string) error {
	f.cid, f.pensionID = cid, pensionID
	return nil
}

func (f *fakeProfiles) Identity(_ context.Context) (string, string) { return f.cid, f.pensionID }

func (f *fakeProfiles) Clear(_ context.Context) error {
	f.cid, f.pensionID = "", ""
	return nil
}

type serverFixture struct {
	verification *fakeVerification
	accounts     *fakeAccounts
	profiles     *fakeProfiles
	mux          *chi.Mux
	server       *Server
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		verification: newFakeVerification(),
		accounts:     &fakeAccounts{},
		profiles:     &fakeProfiles{},
	}
	cfg := &config.Configuration{ServerUrl: "https://verifier.example.com"}
	f.server = NewServer(cfg, f.verification, f.accounts, newFakeQRStore(), f.profiles, health.New(nil))
	f.mux = chi.NewRouter()
	f.server.Routes(f.mux)
	return f
}

func (f *serverFixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStartLogin(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/v1/verification/login")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, "login", got.Flow)
	assert.Contains(t, got.QrCodeLink, "https://verifier.example.com/v1/qr-store?id=")
}

func TestStartFailure(t *testing.T) {
	f := newServerFixture()
	f.verification.startErr = services.ErrNoActiveSession // any non-challenge error

	rec := f.do(t, http.MethodPost, "/v1/verification/login")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResumeWithoutSession(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodPost, "/v1/verification/resume")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResume(t *testing.T) {
	f := newServerFixture()
	f.do(t, http.MethodPost, "/v1/verification/login")

	rec := f.do(t, http.MethodPost, "/v1/verification/resume")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, string(domain.StateResumed), got.State)
}

func TestRestartFlowSelection(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/v1/verification/restart?flow=liveness")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "liveness", got.Flow)

	rec = f.do(t, http.MethodPost, "/v1/verification/restart?flow=bogus")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "login", got.Flow, "unknown flows fall back to login")
}

func waitForResult(t *testing.T, f *serverFixture) *ResultResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.do(t, http.MethodGet, "/v1/verification/status")
		var got StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		if got.Result != nil {
			return got.Result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no result surfaced in time")
	return nil
}

func TestValidatedOutcomeRunsAccountCheck(t *testing.T) {
	f := newServerFixture()
	f.accounts.account = &domain.PensionerAccount{CID: "11410000465", UserStatus: domain.ActiveUserStatus, PensionStatus: "Active"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Watch(ctx)

	f.verification.outcomes <- domain.ProofOutcome{
		Kind:           domain.OutcomeValidated,
		ThreadID:       "thread-1",
		FlowKind:       domain.FlowLogin,
		IdentityNumber: "11410000465",
	}

	result := waitForResult(t, f)
	assert.Equal(t, string(domain.OutcomeValidated), result.Kind)
	assert.Equal(t, "11410000465", result.IdentityNumber)
	assert.Equal(t, "Active", result.PensionStatus)
	assert.Equal(t, "11410000465", f.profiles.cid, "confirmed identity is persisted for the liveness flow")
}

func TestValidatedOutcomeDisabledAccount(t *testing.T) {
	f := newServerFixture()
	f.accounts.account = &domain.PensionerAccount{CID: "11410000465", UserStatus: 0, PensionStatus: "Suspended"}
	f.accounts.checkErr = services.ErrAccountDisabled

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Watch(ctx)

	f.verification.outcomes <- domain.ProofOutcome{
		Kind:           domain.OutcomeValidated,
		FlowKind:       domain.FlowLogin,
		IdentityNumber: "11410000465",
	}

	result := waitForResult(t, f)
	assert.Equal(t, string(domain.OutcomeError), result.Kind)
	assert.Equal(t, msgAccountDisabled, result.Message)
	assert.Equal(t, "Suspended", result.PensionStatus)
	assert.Empty(t, f.profiles.cid, "a disabled account must not be persisted")
}

func TestLivenessOutcomeMismatch(t *testing.T) {
	f := newServerFixture()
	f.profiles.cid = "11410000465"
	f.profiles.pensionID = "PID-7"
	f.accounts.livenessErr = services.ErrCIDMismatch

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Watch(ctx)

	f.verification.outcomes <- domain.ProofOutcome{
		Kind:           domain.OutcomeValidated,
		FlowKind:       domain.FlowLiveness,
		IdentityNumber: "11410099999",
	}

	result := waitForResult(t, f)
	assert.Equal(t, string(domain.OutcomeError), result.Kind)
	assert.Equal(t, msgCIDMismatch, result.Message)
}

func TestRejectedOutcome(t *testing.T) {
	f := newServerFixture()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Watch(ctx)

	f.verification.outcomes <- domain.ProofOutcome{Kind: domain.OutcomeRejected, FlowKind: domain.FlowLogin}

	result := waitForResult(t, f)
	assert.Equal(t, string(domain.OutcomeRejected), result.Kind)
}

func TestQRCodeRoundTrip(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/v1/verification/login")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got.QrCodeLink)

	// fetch through the relative part of the link
	idx := len("https://verifier.example.com")
	body := f.do(t, http.MethodGet, got.QrCodeLink[idx:])
	require.Equal(t, http.StatusOK, body.Code)
	assert.Equal(t, "https://backend/proof-request-url", body.Body.String())
}

func TestQRCodeBadID(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/v1/qr-store?id=not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
