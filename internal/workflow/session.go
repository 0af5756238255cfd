// internal/workflow/session.go
package workflow

import (
	"sync"
	"time"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/form"
	"referralbridge/internal/models"
	"referralbridge/internal/payment"
)

// Session is one seeker's submission attempt. All workflow state lives here,
// scoped to the session; there are no package-level ambient globals, so
// concurrent submissions never share mutable state.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	state       State
	failureCode stderrors.ErrorCode
	form        *form.Form
	order       *models.PaymentOrder
	pending     *payment.PendingCheckout
	recordID    string
	resultCh    chan error
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		state:     StateEditing,
		form:      form.New(),
	}
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailureCode returns the error code a Failed session ended with, or "".
func (s *Session) FailureCode() stderrors.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureCode
}

// RecordID returns the persisted record's id once the session is Submitted.
func (s *Session) RecordID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

// Form exposes the session's draft form. Field edits are only meaningful
// before checkout opens; the snapshot taken at finalization is what persists.
func (s *Session) Form() *form.Form {
	return s.form
}

// Order returns the live payment order, or nil outside the payment stages.
func (s *Session) Order() *models.PaymentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// guard verifies op is legal in the current state without transitioning.
func (s *Session) guard(op Operation) error {
	if !canInvoke(op, s.state) {
		return stderrors.NewInvalidTransitionError(string(op), string(s.state))
	}
	return nil
}

func (s *Session) setState(next State) {
	s.state = next
}

func (s *Session) fail(code stderrors.ErrorCode) {
	s.state = StateFailed
	s.failureCode = code
}
