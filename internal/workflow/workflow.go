// internal/workflow/workflow.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/common/metrics"
	"referralbridge/internal/common/observability"
	"referralbridge/internal/models"
	"referralbridge/internal/payment"
	"referralbridge/internal/store"
	"referralbridge/internal/upload"
)

// ChallengeService is the OTP collaborator contract.
type ChallengeService interface {
	Issue(ctx context.Context, sessionID, email string) error
	Verify(ctx context.Context, sessionID, email, input string) error
	Invalidate(ctx context.Context, sessionID string) error
}

// RecordStore persists the durable referral request record.
type RecordStore interface {
	Create(ctx context.Context, rec *models.ReferralRequestRecord) (string, error)
}

// SearchIndexer mirrors records into the search backend, best-effort.
type SearchIndexer interface {
	IndexRecord(ctx context.Context, rec *models.ReferralRequestRecord) error
}

// Alerter pushes operator alerts, best-effort.
type Alerter interface {
	CriticalAlert(ctx context.Context, subject, message string) error
}

// Deps are the workflow collaborators. Search, Uploader, Alerts and Obs may be
// nil; those concerns degrade to no-ops.
type Deps struct {
	OTP      ChallengeService
	Gateway  payment.OrderCreator
	Verifier *payment.Verifier
	Uploader upload.Uploader
	Records  RecordStore
	Search   SearchIndexer
	Alerts   Alerter
	Logger   logger.Logger
	Obs      *observability.Observability
}

// Settings are the workflow tunables.
type Settings struct {
	AmountMinor     int64
	Currency        string
	StageTimeout    time.Duration // per network stage
	CheckoutTimeout time.Duration // user-driven checkout wait
}

// Manager owns the in-flight submission sessions and drives each one through
// the staged workflow. Every operation is guarded by the transition table; an
// operation invoked from the wrong state mutates nothing.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	otp      ChallengeService
	gateway  payment.OrderCreator
	verifier *payment.Verifier
	uploader upload.Uploader
	records  RecordStore
	search   SearchIndexer
	alerts   Alerter
	settings Settings
	logger   logger.Logger
	obs      *observability.Observability
}

func NewManager(deps Deps, settings Settings) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		otp:      deps.OTP,
		gateway:  deps.Gateway,
		verifier: deps.Verifier,
		uploader: deps.Uploader,
		records:  deps.Records,
		search:   deps.Search,
		alerts:   deps.Alerts,
		settings: settings,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "workflow"}),
		obs:      deps.Obs,
	}
}

// StartSession opens a fresh submission session in the Editing state.
func (m *Manager) StartSession() *Session {
	s := newSession(uuid.New().String())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	m.logger.Info("session started", map[string]interface{}{"sessionId": s.ID})
	return s
}

// Session looks up an in-flight session. Reading out a finished session is
// its last act: Submitted and Failed sessions are removed on read-out, so the
// final state is observable exactly once and finished sessions do not
// accumulate in memory.
func (m *Manager) Session(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, stderrors.NewSessionNotFoundError(id)
	}
	if s.State().IsTerminal() {
		m.removeSession(id)
	}
	return s, nil
}

// removeSession drops a session from the registry and decrements the gauge at
// most once, even under concurrent read-outs.
func (m *Manager) removeSession(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if ok {
		metrics.SessionsActive.Dec()
	}
}

// Abandon tears a session down: the draft, any live challenge and any pending
// checkout are discarded. Nothing durable remains for an abandoned session.
func (m *Manager) Abandon(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return stderrors.NewSessionNotFoundError(id)
	}

	s.mu.Lock()
	if s.pending != nil {
		s.pending.Cancel()
	}
	s.mu.Unlock()

	if err := m.otp.Invalidate(ctx, id); err != nil {
		m.logger.Warn("challenge invalidation failed on abandon", map[string]interface{}{
			"sessionId": id,
			"error":     err,
		})
	}

	metrics.SessionsActive.Dec()
	m.logger.Info("session abandoned", map[string]interface{}{"sessionId": id})
	return nil
}

// IssueChallenge validates the draft and dispatches a verification code to the
// draft email. Allowed from Editing and again from OtpSent: re-issuance
// replaces the previous challenge, so only the newest code verifies.
func (m *Manager) IssueChallenge(ctx context.Context, id string) error {
	s, err := m.Session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.guard(OpIssueChallenge); err != nil {
		s.mu.Unlock()
		return err
	}
	if fieldErrs := s.form.Validate(); len(fieldErrs) > 0 {
		s.mu.Unlock()
		return stderrors.NewValidationFailedError(fmt.Sprintf("%d field(s) invalid", len(fieldErrs)))
	}
	email := s.form.Email()
	s.mu.Unlock()

	err = m.runStage(ctx, "issue_challenge", func(ctx context.Context) error {
		return m.otp.Issue(ctx, id, email)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.setState(StateOtpSent)
	s.mu.Unlock()
	return nil
}

// VerifyCode checks the submitted code against the live challenge. Success
// advances to EmailVerified and consumes the challenge; a mismatch leaves the
// session in OtpSent for another attempt.
func (m *Manager) VerifyCode(ctx context.Context, id, code string) error {
	s, err := m.Session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.guard(OpVerifyCode); err != nil {
		s.mu.Unlock()
		return err
	}
	email := s.form.Email()
	s.mu.Unlock()

	err = m.runStage(ctx, "verify_code", func(ctx context.Context) error {
		return m.otp.Verify(ctx, id, email, code)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.setState(StateEmailVerified)
	s.mu.Unlock()
	return nil
}

// CreateOrder asks the provider for a payment order over the fixed referral
// fee. On provider failure the session stays at EmailVerified; the verified
// email is not re-challenged.
func (m *Manager) CreateOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	s, err := m.Session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.guard(OpCreateOrder); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	draft := s.form.Draft()
	s.mu.Unlock()

	var order *models.PaymentOrder
	err = m.runStage(ctx, "create_order", func(ctx context.Context) error {
		var stageErr error
		order, stageErr = m.gateway.CreateOrder(ctx,
			m.settings.AmountMinor,
			m.settings.Currency,
			"ref-"+id[:8],
			map[string]string{
				"targetCompany": draft.TargetCompany,
				"jobId":         draft.JobID,
			})
		return stageErr
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.order = order
	s.setState(StateOrderCreated)
	s.mu.Unlock()
	return order, nil
}

// OpenCheckout suspends the workflow on a single-fire completion channel and
// returns the parameters the browser-side checkout opens with. A background
// waiter owns the outcome; if no outcome arrives within the checkout timeout
// the session reverts to EmailVerified and the stale order is discarded.
func (m *Manager) OpenCheckout(ctx context.Context, id string) (*models.CheckoutParams, error) {
	s, err := m.Session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.guard(OpOpenCheckout); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !m.gateway.Ready() {
		s.mu.Unlock()
		return nil, stderrors.NewGatewayUnavailableError("gateway is not configured")
	}

	pending := payment.NewPendingCheckout()
	s.pending = pending
	s.resultCh = make(chan error, 1)
	order := s.order
	draft := s.form.Draft()
	s.setState(StatePaymentInProgress)
	s.mu.Unlock()

	go m.awaitCheckout(s, pending)

	return &models.CheckoutParams{
		KeyID:    order.KeyID,
		Amount:   order.Amount,
		Currency: order.Currency,
		OrderID:  order.OrderID,
		Prefill: models.CheckoutPrefill{
			Name:  draft.Name,
			Email: draft.Email,
		},
		Notes: map[string]string{
			"targetCompany": draft.TargetCompany,
			"jobId":         draft.JobID,
		},
	}, nil
}

// HandleCheckoutResult delivers the checkout outcome to the suspended workflow
// and waits for it to settle. Delivery is single-fire: a duplicate completion
// callback for the same checkout is rejected before it can touch anything.
func (m *Manager) HandleCheckoutResult(ctx context.Context, id string, outcome payment.Outcome) error {
	s, err := m.Session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.guard(OpCheckoutResult); err != nil {
		s.mu.Unlock()
		return err
	}
	pending := s.pending
	resultCh := s.resultCh
	s.mu.Unlock()

	if pending == nil || !pending.Deliver(outcome) {
		return stderrors.NewInvalidTransitionError(string(OpCheckoutResult), "outcome already delivered")
	}

	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitCheckout is the suspended half of the checkout stage. It runs detached
// from any request context so a dropped client connection cannot interrupt
// post-payment processing.
func (m *Manager) awaitCheckout(s *Session, pending *payment.PendingCheckout) {
	waitCtx, cancel := context.WithTimeout(context.Background(), m.settings.CheckoutTimeout)
	outcome, err := pending.Await(waitCtx)
	cancel()

	if err != nil {
		// Timed out waiting for the user. Late callbacks are dropped by Cancel.
		pending.Cancel()
		if late, ok := pending.TakeDelivered(); ok {
			// A delivery won the race against the timeout. The caller is
			// already waiting on the result, so honor the accepted outcome.
			s.resultCh <- m.processOutcome(s, late)
			return
		}
		s.mu.Lock()
		if s.state == StatePaymentInProgress {
			s.setState(StateEmailVerified)
			s.order = nil
			s.pending = nil
		}
		s.mu.Unlock()
		m.stage(context.Background(), "checkout", "timeout")
		m.logger.Warn("checkout timed out", map[string]interface{}{"sessionId": s.ID})
		return
	}

	s.resultCh <- m.processOutcome(s, outcome)
}

func (m *Manager) processOutcome(s *Session, outcome payment.Outcome) error {
	ctx := context.Background()

	switch outcome.Kind {
	case payment.OutcomeDismissed:
		s.mu.Lock()
		s.setState(StateEmailVerified)
		s.order = nil
		s.pending = nil
		s.mu.Unlock()
		m.stage(ctx, "checkout", "dismissed")
		m.logger.Info("checkout dismissed", map[string]interface{}{"sessionId": s.ID})
		return nil

	case payment.OutcomeFailed:
		s.mu.Lock()
		s.setState(StateEmailVerified)
		s.order = nil
		s.pending = nil
		s.mu.Unlock()
		m.stage(ctx, "checkout", "failed")
		return stderrors.NewPaymentFailedError(outcome.Reason)

	case payment.OutcomeCompleted:
		return m.verifyAndFinalize(ctx, s, outcome.Callback)

	default:
		return stderrors.NewPaymentFailedError(fmt.Sprintf("unknown outcome %q", outcome.Kind))
	}
}

// verifyAndFinalize is the post-payment path: signature verification gates the
// whole of finalization. A mismatch fails the session closed with no durable
// write of any kind.
func (m *Manager) verifyAndFinalize(ctx context.Context, s *Session, cb *models.PaymentCallback) error {
	if cb == nil {
		return stderrors.NewValidationFailedError("completion outcome without callback payload")
	}

	if err := m.verifier.Verify(*cb); err != nil {
		metrics.SignatureVerifications.WithLabelValues("mismatch").Inc()
		m.stage(ctx, "verify_signature", "mismatch")
		s.mu.Lock()
		s.fail(stderrors.CodeOf(err))
		s.mu.Unlock()
		m.logger.Error("payment signature rejected", map[string]interface{}{
			"sessionId": s.ID,
			"orderId":   cb.OrderID,
			"paymentId": cb.PaymentID,
		})
		return err
	}
	metrics.SignatureVerifications.WithLabelValues("ok").Inc()
	m.stage(ctx, "verify_signature", "ok")

	s.mu.Lock()
	s.setState(StatePaymentVerified)
	s.setState(StateFinalizing)
	draft := s.form.Draft()
	order := s.order
	s.mu.Unlock()

	return m.finalize(ctx, s, draft, order, cb)
}

// finalize uploads the resume (best-effort) and persists the record (required).
// An upload failure degrades the record to an empty resume URL; a persistence
// failure after a verified payment is the one fatal outcome and pages an
// operator.
func (m *Manager) finalize(ctx context.Context, s *Session, draft models.ReferralRequestDraft, order *models.PaymentOrder, cb *models.PaymentCallback) error {
	resumeURL := ""
	if m.uploader != nil && draft.Resume != nil {
		err := m.runStage(ctx, "upload_resume", func(ctx context.Context) error {
			url, upErr := m.uploader.Upload(ctx, draft.Resume)
			if upErr != nil {
				return stderrors.NewUploadFailedError(upErr)
			}
			resumeURL = url
			return nil
		})
		if err != nil {
			m.logger.Warn("resume upload failed, continuing without resume", map[string]interface{}{
				"sessionId": s.ID,
				"code":      stderrors.CodeOf(err),
				"error":     err,
			})
		}
	}

	rec := &models.ReferralRequestRecord{
		Name:          draft.Name,
		Email:         draft.Email,
		TargetCompany: draft.TargetCompany,
		JobID:         draft.JobID,
		ResumeURL:     resumeURL,
		PaymentID:     cb.PaymentID,
		OrderID:       order.OrderID,
		PaymentStatus: "paid",
		Timestamp:     time.Now().UTC(),
		Status:        "pending",
		ViewCount:     0,
	}

	var recordID string
	err := m.runStage(ctx, "persist_record", func(ctx context.Context) error {
		var stageErr error
		recordID, stageErr = m.records.Create(ctx, rec)
		return stageErr
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateOrder) {
		s.mu.Lock()
		s.fail(stderrors.ErrCodeRecordPersistFailed)
		s.mu.Unlock()

		m.logger.Error("record persistence failed after verified payment", map[string]interface{}{
			"sessionId": s.ID,
			"orderId":   order.OrderID,
			"paymentId": cb.PaymentID,
			"error":     err,
		})
		if m.alerts != nil {
			alertErr := m.alerts.CriticalAlert(ctx,
				"referral record persistence failure",
				fmt.Sprintf("payment %s (order %s) verified but record could not be saved: %v",
					cb.PaymentID, order.OrderID, err))
			if alertErr != nil {
				m.logger.Error("operator alert failed", map[string]interface{}{"error": alertErr})
			}
		}
		return stderrors.NewRecordPersistFailedError(err)
	}
	if errors.Is(err, store.ErrDuplicateOrder) {
		// The order already has a record, so this callback was a replay that
		// slipped past the channel guard (e.g. across a restart). Nothing new
		// to write.
		m.logger.Warn("order already recorded", map[string]interface{}{
			"sessionId": s.ID,
			"orderId":   order.OrderID,
		})
	}

	rec.ID = recordID
	if m.search != nil && recordID != "" {
		if idxErr := m.search.IndexRecord(ctx, rec); idxErr != nil {
			m.logger.Warn("search index update failed", map[string]interface{}{
				"recordId": recordID,
				"error":    idxErr,
			})
		}
	}

	s.mu.Lock()
	s.recordID = recordID
	s.pending = nil
	s.setState(StateSubmitted)
	s.mu.Unlock()

	metrics.SubmissionsTotal.Inc()
	m.stage(ctx, "finalize", "ok")
	m.logger.Info("referral request submitted", map[string]interface{}{
		"sessionId": s.ID,
		"recordId":  recordID,
		"orderId":   order.OrderID,
	})
	return nil
}

// runStage executes one network stage under the stage timeout and records its
// outcome and duration.
func (m *Manager) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, m.settings.StageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)

	metrics.WorkflowStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if m.obs != nil {
		m.obs.RecordStageDuration(ctx, stage, elapsed)
	}
	if err != nil {
		m.stage(ctx, stage, "error")
		return err
	}
	m.stage(ctx, stage, "ok")
	return nil
}

func (m *Manager) stage(ctx context.Context, stage, outcome string) {
	metrics.WorkflowStageTotal.WithLabelValues(stage, outcome).Inc()
	if m.obs != nil {
		m.obs.RecordStage(ctx, stage, outcome)
	}
}
