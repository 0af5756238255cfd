// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/common/validation"
	"referralbridge/internal/models"
	"referralbridge/internal/payment"
	"referralbridge/internal/workflow"
)

// Schema names registered with the request validator.
const (
	schemaOtpVerify      = "otp_verify"
	schemaCheckoutResult = "checkout_result"
	schemaPaymentOrder   = "payment_order"
	schemaPaymentVerify  = "payment_verify"
)

// ReferralReader is the read surface over persisted referral requests.
type ReferralReader interface {
	QueryByCompany(ctx context.Context, company string) ([]models.ReferralRequestRecord, error)
	ListOrderedByTimestamp(ctx context.Context) ([]models.ReferralRequestRecord, error)
	IncrementViewCount(ctx context.Context, id string) error
	Stats(ctx context.Context, feeMinor int64) (*models.AdminStats, error)
}

// CompanySearcher is the optional search-backed referrer view.
type CompanySearcher interface {
	SearchByCompany(ctx context.Context, company string) ([]models.ReferralRequestRecord, error)
}

// Server wires the submission workflow and the read surfaces onto HTTP.
type Server struct {
	manager   *workflow.Manager
	gateway   payment.OrderCreator
	verifier  *payment.Verifier
	records   ReferralReader
	search    CompanySearcher // may be nil
	validator *validation.Validator
	feeMinor  int64
	logger    logger.Logger
	mux       *http.ServeMux
}

func New(manager *workflow.Manager, gateway payment.OrderCreator, verifier *payment.Verifier,
	records ReferralReader, search CompanySearcher, feeMinor int64, log logger.Logger) (*Server, error) {

	validator, err := validation.NewValidator(map[string]string{
		schemaOtpVerify:      validation.OtpVerifySchema,
		schemaCheckoutResult: validation.CheckoutResultSchema,
		schemaPaymentOrder:   validation.PaymentOrderSchema,
		schemaPaymentVerify:  validation.PaymentVerifySchema,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		manager:   manager,
		gateway:   gateway,
		verifier:  verifier,
		records:   records,
		search:    search,
		validator: validator,
		feeMinor:  feeMinor,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionStatus)
	s.mux.HandleFunc("PUT /api/sessions/{id}/form", s.handleUpdateForm)
	s.mux.HandleFunc("POST /api/sessions/{id}/otp", s.handleIssueOtp)
	s.mux.HandleFunc("POST /api/sessions/{id}/otp/verify", s.handleVerifyOtp)
	s.mux.HandleFunc("POST /api/sessions/{id}/order", s.handleCreateOrder)
	s.mux.HandleFunc("POST /api/sessions/{id}/checkout", s.handleOpenCheckout)
	s.mux.HandleFunc("POST /api/sessions/{id}/checkout/result", s.handleCheckoutResult)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("POST /api/payment/orders", s.handleProviderOrder)
	s.mux.HandleFunc("POST /api/payment/verify", s.handlePaymentVerify)

	s.mux.HandleFunc("GET /api/referrals", s.handleListReferrals)
	s.mux.HandleFunc("POST /api/referrals/{id}/view", s.handleRecordView)
	s.mux.HandleFunc("GET /api/admin/stats", s.handleAdminStats)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("response encode failed", map[string]interface{}{"error": err})
		}
	}
}

// writeError maps workflow error codes onto HTTP statuses and emits the
// structured error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := stderrors.CodeOf(err)
	status := http.StatusInternalServerError

	switch code {
	case stderrors.ErrCodeValidationFailed, stderrors.ErrCodeInvalidAmount,
		stderrors.ErrCodeOTPMismatch, stderrors.ErrCodeSignatureMismatch:
		status = http.StatusBadRequest
	case stderrors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodeInvalidTransition, stderrors.ErrCodeOTPNotIssued:
		status = http.StatusConflict
	case stderrors.ErrCodePaymentFailed:
		status = http.StatusPaymentRequired
	case stderrors.ErrCodeOTPDispatchFailed, stderrors.ErrCodeOrderCreateFailed,
		stderrors.ErrCodeVerificationUnavailable:
		status = http.StatusBadGateway
	case stderrors.ErrCodeGatewayUnavailable:
		status = http.StatusServiceUnavailable
	case stderrors.ErrCodeRecordPersistFailed:
		status = http.StatusInternalServerError
	}

	switch {
	case stderrors.IsSecurityRelevant(code):
		s.logger.Error("security-relevant request rejected", map[string]interface{}{
			"code":     code,
			"category": stderrors.GetErrorCategory(code),
			"status":   status,
		})
	case stderrors.IsFatal(code):
		s.logger.Error("fatal workflow failure surfaced", map[string]interface{}{
			"code":     code,
			"category": stderrors.GetErrorCategory(code),
			"status":   status,
		})
	}

	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		s.writeJSON(w, status, stdErr)
		return
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// validateBody runs the named schema over the body and writes the 400 response
// itself when invalid.
func (s *Server) validateBody(w http.ResponseWriter, name string, body []byte) bool {
	result, err := s.validator.Validate(name, body)
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if !result.Valid {
		s.writeJSON(w, http.StatusBadRequest, result)
		return false
	}
	return true
}
