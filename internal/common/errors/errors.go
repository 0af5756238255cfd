// Package errors provides standardized error handling for the referral
// submission workflow.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Validation errors (local, user-correctable, never reach the network)
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"

	// Workflow state errors
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeOTPNotIssued      ErrorCode = "OTP_NOT_ISSUED"

	// Transient collaborator errors (dismissible, the step may be retried)
	ErrCodeOTPDispatchFailed ErrorCode = "OTP_DISPATCH_FAILED"
	ErrCodeOrderCreateFailed ErrorCode = "ORDER_CREATE_FAILED"
	ErrCodeUploadFailed      ErrorCode = "UPLOAD_FAILED"

	// Payment errors
	ErrCodeGatewayUnavailable      ErrorCode = "PAYMENT_GATEWAY_UNAVAILABLE"
	ErrCodePaymentFailed           ErrorCode = "PAYMENT_FAILED"
	ErrCodeOTPMismatch             ErrorCode = "OTP_MISMATCH"
	ErrCodeSignatureMismatch       ErrorCode = "SIGNATURE_MISMATCH"
	ErrCodeVerificationUnavailable ErrorCode = "VERIFICATION_UNAVAILABLE"

	// Fatal: payment succeeded but the record could not be saved.
	ErrCodeRecordPersistFailed ErrorCode = "RECORD_PERSIST_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable field validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAmountError creates a non-retryable amount validation error.
// Rejected client-side before any provider call is made.
func NewInvalidAmountError(amount int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAmount,
		Message:   "Order amount must be a positive integer in minor units",
		Details:   fmt.Sprintf("amount: %d", amount),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable workflow state error.
func NewInvalidTransitionError(operation, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Operation not valid in current workflow state",
		Details:   fmt.Sprintf("operation: %s, state: %s", operation, state),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable session lookup error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Workflow session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPNotIssuedError creates a non-retryable error for verification without a challenge.
func NewOTPNotIssuedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPNotIssued,
		Message:   "No verification code has been issued for this session",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPDispatchFailedError creates a retryable email dispatch error. No
// challenge is recorded when dispatch fails.
func NewOTPDispatchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPDispatchFailed,
		Message:   "Verification email could not be sent",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPMismatchError creates a user-correctable code mismatch error. The
// challenge stays live; the user may re-attempt or request re-issuance.
func NewOTPMismatchError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPMismatch,
		Message:   "Verification code does not match",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderCreateFailedError creates a retryable provider-side order error.
// Email verification is not re-required after this failure.
func NewOrderCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderCreateFailed,
		Message:   "Payment order could not be created",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayUnavailableError creates a non-retryable checkout readiness error.
func NewGatewayUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayUnavailable,
		Message:   "Payment gateway unavailable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentFailedError carries the provider's failure reason back to the user.
func NewPaymentFailedError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentFailed,
		Message:   "Payment was not completed",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSignatureMismatchError creates the security-relevant verification error.
// Distinct from generic transient errors: it may indicate tampering. Fail-closed,
// no durable write happens after it.
func NewSignatureMismatchError(orderID, paymentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignatureMismatch,
		Message:   "Payment signature verification failed",
		Details:   fmt.Sprintf("orderId: %s, paymentId: %s", orderID, paymentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerificationUnavailableError covers transport/server errors during
// signature verification. Treated as failure: finalization must not proceed.
func NewVerificationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationUnavailable,
		Message:   "Payment verification could not be completed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadFailedError creates the warning-grade resume upload error. The
// record is still created without a resume URL.
func NewUploadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   "Resume upload failed, submission continues without resume",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordPersistFailedError creates the fatal post-payment persistence error.
// Money has moved but no record exists; surfaced as a contact-support condition
// and never silently swallowed.
func NewRecordPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordPersistFailed,
		Message:   "Payment succeeded but the referral request could not be saved",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// IsSecurityRelevant reports whether the code indicates possible tampering.
func IsSecurityRelevant(code ErrorCode) bool {
	return code == ErrCodeSignatureMismatch
}

// IsFatal reports whether the code is the unrecoverable contact-support
// condition (paid but unrecorded).
func IsFatal(code ErrorCode) bool {
	return code == ErrCodeRecordPersistFailed
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidAmount:
		return "VALIDATION"
	case ErrCodeInvalidTransition, ErrCodeSessionNotFound, ErrCodeOTPNotIssued:
		return "WORKFLOW"
	case ErrCodeOTPDispatchFailed, ErrCodeOTPMismatch:
		return "OTP"
	case ErrCodeOrderCreateFailed, ErrCodeGatewayUnavailable, ErrCodePaymentFailed,
		ErrCodeSignatureMismatch, ErrCodeVerificationUnavailable:
		return "PAYMENT"
	case ErrCodeUploadFailed, ErrCodeRecordPersistFailed:
		return "FINALIZE"
	default:
		return "OTHER"
	}
}
