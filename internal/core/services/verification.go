package services

import (
	"context"
	"sync"
	"time"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/log"
	"github.com/nppfbt/ndi-verifier/internal/pubsub"
)

// OutcomeTopic is the internal pubsub topic where terminal outcomes are
// re-broadcast for other components (audit, notification hooks)
const OutcomeTopic = "verification-outcome"

const outcomeBuffer = 8

// VerificationConfig holds the resolver timings. The poll deadline is layered
// above the per-call timeouts carried by the http client.
type VerificationConfig struct {
	PollInterval time.Duration
	PollDeadline time.Duration
}

// VerificationService implements ports.VerificationService. It owns the poll
// timer and the event subscription of the attempt it is driving: both are
// torn down on the first terminal resolution, whichever channel delivered it,
// so at most one terminal outcome is ever emitted per session.
type VerificationService struct {
	gateway     ports.ProofRequestGateway
	sessions    ports.SessionRepository
	events      pubsub.Subscriber
	broadcaster pubsub.Publisher
	cfg         VerificationConfig

	mx       sync.Mutex
	attempt  *attempt
	outcomes chan domain.ProofOutcome
}

// attempt is the owned resource set of one in-flight resolution: its context,
// its poll timer and its event subscription. A new Start or Resume replaces
// the whole set; a replaced attempt can never fire against a newer thread id.
type attempt struct {
	session  *domain.VerificationSession
	ctx      context.Context
	cancel   context.CancelFunc
	deadline time.Time

	mx       sync.Mutex
	timer    *time.Timer
	sub      pubsub.Subscription
	resolved bool
	pollOK   bool // at least one poll tick fetched the webhook details
}

// NewVerificationService creates the resolver shared by the login and
// liveness flows. broadcaster may be nil; it only feeds the internal outcome
// topic.
func NewVerificationService(gateway ports.ProofRequestGateway, sessions ports.SessionRepository, events pubsub.Subscriber, broadcaster pubsub.Publisher, cfg VerificationConfig) *VerificationService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = 60 * time.Second
	}
	return &VerificationService{
		gateway:     gateway,
		sessions:    sessions,
		events:      events,
		broadcaster: broadcaster,
		cfg:         cfg,
		outcomes:    make(chan domain.ProofOutcome, outcomeBuffer),
	}
}

// Outcome returns the channel delivering terminal outcomes, one per session
func (s *VerificationService) Outcome() <-chan domain.ProofOutcome {
	return s.outcomes
}

func (s *VerificationService) drainOutcomes() {
	for {
		select {
		case <-s.outcomes:
		default:
			return
		}
	}
}

// Session returns a snapshot of the session currently driven by the service,
// nil when idle
func (s *VerificationService) Session() *domain.VerificationSession {
	s.mx.Lock()
	a := s.attempt
	s.mx.Unlock()
	if a == nil {
		return nil
	}
	return a.snapshot()
}

// Start begins a new verification attempt. A prior in-flight attempt is
// implicitly superseded: its loops are cancelled before the new challenge is
// requested. Challenge failure is fatal to the attempt and surfaced to the
// caller; callback registration failure is not.
func (s *VerificationService) Start(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error) {
	s.Cancel()

	session, err := s.gateway.RequestChallenge(ctx, flow)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		// A session that cannot be persisted cannot survive suspension, but
		// the in-memory flow still works for the happy path.
		log.Error(ctx, "persisting verification session", "err", err, "threadID", session.ThreadID)
	}

	// Registration happens before the wallet hand-off: the result may arrive
	// while the app is backgrounded and unable to hold a live connection.
	if ok := s.gateway.RegisterCallback(ctx, session.ThreadID); !ok {
		log.Warn(ctx, "callback registration failed, relying on polling", "threadID", session.ThreadID)
	}

	session.State = domain.StateAwaitingWallet
	s.beginResolution(ctx, session)
	return session, nil
}

// Resume restarts resolution for the persisted session after an app wake-up.
// The wake-up url carries no payload: the result is always fetched from the
// webhook details. Only the thread id is required; a session persisted
// without a deep link still resumes. The event channel is re-subscribed
// unconditionally since suspension drops it silently, and the poll loop gets
// a fresh deadline.
func (s *VerificationService) Resume(ctx context.Context) (*domain.VerificationSession, error) {
	session := s.sessions.Load(ctx)
	if session == nil || !session.Resumable() {
		return nil, ErrNoActiveSession
	}

	s.Cancel()

	if ok := s.gateway.RegisterCallback(ctx, session.ThreadID); !ok {
		log.Warn(ctx, "callback re-registration failed, relying on polling", "threadID", session.ThreadID)
	}

	session.State = domain.StateResumed
	s.beginResolution(ctx, session)
	return session, nil
}

// Restart cancels any in-flight attempt, clears the persisted session and
// starts over. Stale loops referencing the abandoned thread id are a
// correctness bug, so cancellation happens before anything else.
func (s *VerificationService) Restart(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error) {
	s.Cancel()
	if err := s.sessions.Clear(ctx); err != nil {
		log.Error(ctx, "clearing session on restart", "err", err)
	}
	return s.Start(ctx, flow)
}

// Cancel tears down the poll timer and the event subscription of the current
// attempt without emitting an outcome. Used on restart, app teardown and
// backgrounding.
func (s *VerificationService) Cancel() {
	s.mx.Lock()
	a := s.attempt
	s.attempt = nil
	s.mx.Unlock()

	if a == nil {
		return
	}
	a.cancel()
	a.mx.Lock()
	a.resolved = true // block any in-flight tick from emitting
	a.teardownLocked()
	a.mx.Unlock()
}

// beginResolution starts both resolution channels for the session: the best
// effort event subscription and the authoritative poll loop. The loops live
// on a background context so they survive the request that triggered them.
func (s *VerificationService) beginResolution(ctx context.Context, session *domain.VerificationSession) {
	// An undelivered outcome of a superseded session must not surface as the
	// result of this one. The prior attempt is already cancelled, so nothing
	// can refill the buffer between here and the new loops starting.
	s.drainOutcomes()

	actx, cancel := context.WithCancel(log.CopyFromContext(ctx, context.Background()))

	// The attempt owns a copy of the session: the loops mutate its state from
	// background goroutines, and the value handed to the caller must not be
	// written to behind its back.
	owned := *session
	a := &attempt{
		session:  &owned,
		ctx:      actx,
		cancel:   cancel,
		deadline: time.Now().Add(s.cfg.PollDeadline),
	}

	s.mx.Lock()
	s.attempt = a
	s.mx.Unlock()

	if s.events != nil {
		sub, err := s.events.Subscribe(actx, session.ThreadID, func(ctx context.Context, msg pubsub.Message) error {
			s.onEvent(ctx, a, msg)
			return nil
		})
		if err != nil {
			// Best effort only: correctness belongs to the poll loop.
			log.Warn(actx, "event channel subscription failed", "err", err, "threadID", session.ThreadID)
		} else {
			a.mx.Lock()
			a.sub = sub
			a.mx.Unlock()
		}
	}

	s.schedulePoll(a, s.cfg.PollInterval)
}

// onEvent classifies a message from the event channel. Anything that cannot
// be parsed or lacks the identity number is ignored: the poll loop remains
// the source of truth.
func (s *VerificationService) onEvent(ctx context.Context, a *attempt, msg pubsub.Message) {
	ev, err := domain.ParseProofEvent(msg)
	if err != nil {
		log.Error(ctx, "unparseable proof event", "err", err, "threadID", a.session.ThreadID)
		return
	}

	switch ev.Data.Type {
	case domain.EventProofRejected:
		s.resolve(ctx, a, domain.ProofOutcome{
			Kind:      domain.OutcomeRejected,
			ThreadID:  a.session.ThreadID,
			FlowKind:  a.session.FlowKind,
			RawDetail: domain.EventProofRejected,
		})
	case domain.EventProofResult:
		cid := ev.IdentityNumber()
		if cid == "" {
			return
		}
		s.resolve(ctx, a, domain.ProofOutcome{
			Kind:           domain.OutcomeValidated,
			ThreadID:       a.session.ThreadID,
			FlowKind:       a.session.FlowKind,
			IdentityNumber: cid,
		})
	}
}

// schedulePoll arms the self-rescheduling poll timer. No dedicated goroutine
// loops here: each tick either resolves, reschedules or expires.
func (s *VerificationService) schedulePoll(a *attempt, d time.Duration) {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.resolved {
		return
	}
	a.timer = time.AfterFunc(d, func() { s.pollTick(a) })
}

// pollTick fetches the webhook details once and classifies them. Transport
// and parse failures are recoverable per tick: they are logged and the loop
// continues until the deadline.
func (s *VerificationService) pollTick(a *attempt) {
	if a.ctx.Err() != nil || a.isResolved() {
		return
	}
	a.setState(domain.StatePolling)

	details, err := s.gateway.WebhookDetails(a.ctx, a.session.ThreadID)
	switch {
	case err != nil:
		log.Debug(a.ctx, "transient poll failure", "err", err, "threadID", a.session.ThreadID)

	case details.Rejected():
		s.resolve(a.ctx, a, domain.ProofOutcome{
			Kind:      domain.OutcomeRejected,
			ThreadID:  a.session.ThreadID,
			FlowKind:  a.session.FlowKind,
			RawDetail: details.VerificationResult,
		})
		return

	case details.Validated():
		a.markPollOK()
		// A validated record whose attributes cannot be extracted yet is a
		// partial delivery: keep polling, do not error.
		if cid := details.IdentityNumber(); cid != "" {
			s.resolve(a.ctx, a, domain.ProofOutcome{
				Kind:           domain.OutcomeValidated,
				ThreadID:       a.session.ThreadID,
				FlowKind:       a.session.FlowKind,
				IdentityNumber: cid,
			})
			return
		}

	default:
		a.markPollOK()
	}

	if time.Now().After(a.deadline) {
		s.expire(a)
		return
	}
	s.schedulePoll(a, s.cfg.PollInterval)
}

// expire ends the attempt on deadline. A deadline where not a single tick
// managed to fetch the details is a transport failure, logged as such, but
// reported to the caller the same way a timeout is.
func (s *VerificationService) expire(a *attempt) {
	outcome := domain.ProofOutcome{
		Kind:     domain.OutcomeTimedOut,
		ThreadID: a.session.ThreadID,
		FlowKind: a.session.FlowKind,
	}
	if !a.hasPolledOK() {
		a.setState(domain.StateFailed)
		outcome.RawDetail = "no webhook details reachable before deadline"
		log.Error(a.ctx, "verification failed: webhook details unreachable", "threadID", a.session.ThreadID)
	}
	s.resolve(a.ctx, a, outcome)
}

// resolve emits the terminal outcome exactly once and tears the attempt
// down: whichever channel got here first wins, the loser is dismantled so it
// cannot double-report or leak.
func (s *VerificationService) resolve(ctx context.Context, a *attempt, outcome domain.ProofOutcome) {
	a.mx.Lock()
	if a.resolved {
		a.mx.Unlock()
		return
	}
	a.resolved = true
	a.teardownLocked()

	switch outcome.Kind {
	case domain.OutcomeValidated:
		a.session.State = domain.StateValidated
	case domain.OutcomeRejected:
		a.session.State = domain.StateRejected
	case domain.OutcomeTimedOut:
		if a.session.State != domain.StateFailed {
			a.session.State = domain.StateTimedOut
		}
	}
	state := a.session.State
	a.mx.Unlock()

	a.cancel()

	if err := s.sessions.Clear(ctx); err != nil {
		log.Error(ctx, "clearing session after terminal outcome", "err", err, "threadID", outcome.ThreadID)
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, OutcomeTopic, outcome); err != nil {
			log.Warn(ctx, "broadcasting outcome", "err", err, "threadID", outcome.ThreadID)
		}
	}

	log.Info(ctx, "verification resolved", "threadID", outcome.ThreadID, "kind", outcome.Kind, "state", state)

	select {
	case s.outcomes <- outcome:
	default:
		log.Warn(ctx, "outcome channel full, dropping", "threadID", outcome.ThreadID)
	}
}

func (a *attempt) isResolved() bool {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.resolved
}

func (a *attempt) setState(state domain.SessionState) {
	a.mx.Lock()
	a.session.State = state
	a.mx.Unlock()
}

// snapshot returns a copy of the session safe to hand outside the attempt
func (a *attempt) snapshot() *domain.VerificationSession {
	a.mx.Lock()
	defer a.mx.Unlock()
	copied := *a.session
	return &copied
}

func (a *attempt) markPollOK() {
	a.mx.Lock()
	a.pollOK = true
	a.mx.Unlock()
}

func (a *attempt) hasPolledOK() bool {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.pollOK
}

// teardownLocked stops the timer and drops the subscription. Callers must
// hold a.mx.
func (a *attempt) teardownLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.sub != nil {
		a.sub.Unsubscribe()
		a.sub = nil
	}
}
