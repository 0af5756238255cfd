// internal/workflow/states.go
package workflow

// State is the explicit submission workflow state. The scattered boolean flags
// of a naive implementation (otp sent, email verified, payment in progress)
// collapse into this single enumeration plus the transition table below.
type State string

const (
	StateEditing           State = "editing"
	StateOtpSent           State = "otp_sent"
	StateEmailVerified     State = "email_verified"
	StateOrderCreated      State = "order_created"
	StatePaymentInProgress State = "payment_in_progress"
	StatePaymentVerified   State = "payment_verified"
	StateFinalizing        State = "finalizing"
	StateSubmitted         State = "submitted"
	StateFailed            State = "failed"
)

// Operation names the workflow entry points guarded by the transition table.
type Operation string

const (
	OpIssueChallenge Operation = "issue_challenge"
	OpVerifyCode     Operation = "verify_code"
	OpCreateOrder    Operation = "create_order"
	OpOpenCheckout   Operation = "open_checkout"
	OpCheckoutResult Operation = "checkout_result"
)

// validSources lists the states from which each operation may be invoked.
// Anything else is rejected with INVALID_TRANSITION and mutates nothing.
var validSources = map[Operation][]State{
	OpIssueChallenge: {StateEditing, StateOtpSent},
	OpVerifyCode:     {StateOtpSent},
	OpCreateOrder:    {StateEmailVerified},
	OpOpenCheckout:   {StateOrderCreated},
	OpCheckoutResult: {StatePaymentInProgress},
}

func canInvoke(op Operation, from State) bool {
	for _, s := range validSources[op] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session has finished (successfully or not).
func (s State) IsTerminal() bool {
	return s == StateSubmitted || s == StateFailed
}
