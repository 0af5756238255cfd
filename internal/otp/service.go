// internal/otp/service.go
package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/form"
	"referralbridge/internal/mail"
	"referralbridge/internal/models"
)

const (
	challengeKeyPrefix = "otp:"

	emailSubject = "Your ReferralBridge verification code"
)

// Service issues and verifies one-time codes. A session holds at most one live
// challenge; issuing a new one overwrites the previous (last-issued-wins).
type Service struct {
	redis  *redis.Client
	mailer mail.Mailer
	ttl    time.Duration
	logger logger.Logger
}

func NewService(rdb *redis.Client, mailer mail.Mailer, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		redis:  rdb,
		mailer: mailer,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "otp"}),
	}
}

// Issue generates a code, dispatches it, and only then records the challenge.
// A dispatch failure records nothing: the workflow stays at "not sent" and the
// user may retry. Exactly one outbound email per successful call.
func (s *Service) Issue(ctx context.Context, sessionID, email string) error {
	if !form.IsValidEmail(email) {
		return stderrors.NewValidationFailedError(fmt.Sprintf("email: %q", email))
	}

	code, err := GenerateCode()
	if err != nil {
		return stderrors.NewOTPDispatchFailedError(err)
	}

	body := emailBody(code)
	if err := s.mailer.Send(ctx, email, emailSubject, body); err != nil {
		return stderrors.NewOTPDispatchFailedError(err)
	}

	challenge := models.OtpChallenge{Code: code, IssuedToEmail: email}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return stderrors.NewOTPDispatchFailedError(err)
	}

	// SET overwrites any prior challenge for the session.
	if err := s.redis.Set(ctx, challengeKeyPrefix+sessionID, payload, s.ttl).Err(); err != nil {
		s.logger.Error("challenge store failed after dispatch", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
		return stderrors.NewOTPDispatchFailedError(err)
	}

	s.logger.Info("challenge issued", map[string]interface{}{
		"sessionId": sessionID,
		"email":     email,
	})
	return nil
}

// Verify compares the submitted code against the current challenge with exact
// string equality. Success consumes the challenge; failure leaves it intact so
// the user may re-attempt.
func (s *Service) Verify(ctx context.Context, sessionID, email, input string) error {
	raw, err := s.redis.Get(ctx, challengeKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return stderrors.NewOTPNotIssuedError(sessionID)
	}
	if err != nil {
		return stderrors.NewVerificationUnavailableError(err)
	}

	var challenge models.OtpChallenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return stderrors.NewVerificationUnavailableError(err)
	}

	if challenge.IssuedToEmail != email || challenge.Code != input {
		return stderrors.NewOTPMismatchError()
	}

	// One-directional gate: the consumed challenge cannot verify again.
	if err := s.redis.Del(ctx, challengeKeyPrefix+sessionID).Err(); err != nil {
		s.logger.Warn("challenge delete failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
	}

	s.logger.Info("email verified", map[string]interface{}{
		"sessionId": sessionID,
		"email":     email,
	})
	return nil
}

// Invalidate drops the session's challenge, used on session teardown.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, challengeKeyPrefix+sessionID).Err()
}

// GenerateCode returns a uniformly random code in [100000, 999999]. Codes are
// always exactly 6 digits; no zero-padding scheme is involved.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp generation failed: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

func emailBody(code string) string {
	return fmt.Sprintf(
		"<p>Your ReferralBridge verification code is:</p><h2>%s</h2><p>Enter this code to confirm your email address and continue with your referral request.</p>",
		code,
	)
}
