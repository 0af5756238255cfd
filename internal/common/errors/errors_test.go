package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Code Extraction
// ==========================

func TestCodeOf(t *testing.T) {
	err := NewOTPMismatchError()
	assert.Equal(t, ErrCodeOTPMismatch, CodeOf(err))

	wrapped := fmt.Errorf("stage failed: %w", NewPaymentFailedError("card declined"))
	assert.Equal(t, ErrCodePaymentFailed, CodeOf(wrapped))

	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain error")))
}

// ==========================
// Classification
// ==========================

func TestIsSecurityRelevant(t *testing.T) {
	assert.True(t, IsSecurityRelevant(ErrCodeSignatureMismatch))
	assert.False(t, IsSecurityRelevant(ErrCodePaymentFailed))
	assert.False(t, IsSecurityRelevant(ErrCodeValidationFailed))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrCodeRecordPersistFailed))
	assert.False(t, IsFatal(ErrCodeSignatureMismatch))
	assert.False(t, IsFatal(ErrCodeOrderCreateFailed))
}

func TestGetErrorCategory(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrCodeValidationFailed:    "VALIDATION",
		ErrCodeInvalidAmount:       "VALIDATION",
		ErrCodeInvalidTransition:   "WORKFLOW",
		ErrCodeSessionNotFound:     "WORKFLOW",
		ErrCodeOTPDispatchFailed:   "OTP",
		ErrCodeOTPMismatch:         "OTP",
		ErrCodeSignatureMismatch:   "PAYMENT",
		ErrCodeGatewayUnavailable:  "PAYMENT",
		ErrCodeUploadFailed:        "FINALIZE",
		ErrCodeRecordPersistFailed: "FINALIZE",
		ErrorCode("BOGUS"):         "OTHER",
	}
	for code, want := range cases {
		assert.Equal(t, want, GetErrorCategory(code), "category of %s", code)
	}
}

// ==========================
// Constructors
// ==========================

func TestNewUploadFailedError(t *testing.T) {
	err := NewUploadFailedError(fmt.Errorf("bucket gone"))
	assert.Equal(t, ErrCodeUploadFailed, err.Code)
	assert.Equal(t, "bucket gone", err.Details)
	assert.False(t, err.Retryable)
	assert.False(t, err.Timestamp.IsZero())
}

func TestRetryabilityByConstructor(t *testing.T) {
	assert.True(t, NewOTPDispatchFailedError(fmt.Errorf("ses down")).Retryable)
	assert.True(t, NewOrderCreateFailedError(fmt.Errorf("provider 500")).Retryable)
	assert.False(t, NewSignatureMismatchError("order_1", "pay_1").Retryable)
	assert.False(t, NewRecordPersistFailedError(fmt.Errorf("db down")).Retryable)
}
