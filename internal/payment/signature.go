// internal/payment/signature.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/models"
)

// Verifier recomputes the provider's payment signature. It is a pure predicate
// over the callback plus the server-only secret; it never mutates durable
// state.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("payment signature secret missing")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Signature returns hex(HMAC-SHA256(secret, orderId + "|" + paymentId)).
func (v *Verifier) Signature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts the callback iff the recomputed hex digest equals the
// submitted signature. Any missing field is a validation error; a digest
// mismatch is the security-relevant failure and blocks finalization.
func (v *Verifier) Verify(cb models.PaymentCallback) error {
	if cb.PaymentID == "" || cb.OrderID == "" || cb.Signature == "" {
		return stderrors.NewValidationFailedError("payment callback is missing required fields")
	}

	expected := v.Signature(cb.OrderID, cb.PaymentID)
	if expected != cb.Signature {
		return stderrors.NewSignatureMismatchError(cb.OrderID, cb.PaymentID)
	}
	return nil
}
