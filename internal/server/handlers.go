// internal/server/handlers.go
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"referralbridge/internal/form"
	"referralbridge/internal/models"
	"referralbridge/internal/payment"
	"referralbridge/internal/workflow"
)

const maxResumeBytes = 10 << 20

type sessionResponse struct {
	SessionID   string               `json:"sessionId"`
	State       workflow.State       `json:"state"`
	FailureCode string               `json:"failureCode,omitempty"`
	RecordID    string               `json:"recordId,omitempty"`
	Order       *models.PaymentOrder `json:"order,omitempty"`
}

func (s *Server) sessionBody(sess *workflow.Session) sessionResponse {
	return sessionResponse{
		SessionID:   sess.ID,
		State:       sess.State(),
		FailureCode: string(sess.FailureCode()),
		RecordID:    sess.RecordID(),
		Order:       sess.Order(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.StartSession()
	s.writeJSON(w, http.StatusCreated, s.sessionBody(sess))
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionBody(sess))
}

// handleUpdateForm accepts multipart form data with the draft fields and the
// resume file. Edits are only accepted before email verification locks the
// draft into the payment path.
func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if state := sess.State(); state != workflow.StateEditing && state != workflow.StateOtpSent {
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error": "form is no longer editable in state " + string(state),
		})
		return
	}

	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	f := sess.Form()
	if v, ok := formValue(r, form.FieldName); ok {
		f.SetName(v)
	}
	if v, ok := formValue(r, form.FieldEmail); ok {
		f.SetEmail(v)
	}
	if v, ok := formValue(r, form.FieldCompany); ok {
		f.SetTargetCompany(v)
	}
	if v, ok := formValue(r, form.FieldJobID); ok {
		f.SetJobID(v)
	}

	if file, header, err := r.FormFile(form.FieldResume); err == nil {
		content, readErr := io.ReadAll(io.LimitReader(file, maxResumeBytes))
		file.Close()
		if readErr != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resume could not be read"})
			return
		}
		f.SetResume(&models.ResumeHandle{
			Filename:  header.Filename,
			MediaType: header.Header.Get("Content-Type"),
			Size:      header.Size,
			Content:   content,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       sess.State(),
		"fieldErrors": f.Validate(),
	})
}

func formValue(r *http.Request, field string) (string, bool) {
	vals, ok := r.MultipartForm.Value[field]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (s *Server) handleIssueOtp(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.IssueChallenge(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	sess, _ := s.manager.Session(id)
	s.writeJSON(w, http.StatusOK, s.sessionBody(sess))
}

func (s *Server) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !s.validateBody(w, schemaOtpVerify, body) {
		return
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id := r.PathValue("id")
	if err := s.manager.VerifyCode(r.Context(), id, payload.Code); err != nil {
		s.writeError(w, err)
		return
	}
	sess, _ := s.manager.Session(id)
	s.writeJSON(w, http.StatusOK, s.sessionBody(sess))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.manager.CreateOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleOpenCheckout(w http.ResponseWriter, r *http.Request) {
	params, err := s.manager.OpenCheckout(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, params)
}

func (s *Server) handleCheckoutResult(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !s.validateBody(w, schemaCheckoutResult, body) {
		return
	}

	var payload struct {
		Status    string `json:"status"`
		Reason    string `json:"reason"`
		PaymentID string `json:"razorpay_payment_id"`
		OrderID   string `json:"razorpay_order_id"`
		Signature string `json:"razorpay_signature"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	outcome := payment.Outcome{Kind: payment.OutcomeKind(payload.Status), Reason: payload.Reason}
	if outcome.Kind == payment.OutcomeCompleted {
		if payload.PaymentID == "" || payload.OrderID == "" || payload.Signature == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "completed outcome requires razorpay_payment_id, razorpay_order_id and razorpay_signature",
			})
			return
		}
		outcome.Callback = &models.PaymentCallback{
			PaymentID: payload.PaymentID,
			OrderID:   payload.OrderID,
			Signature: payload.Signature,
		}
	}

	id := r.PathValue("id")
	if err := s.manager.HandleCheckoutResult(r.Context(), id, outcome); err != nil {
		s.writeError(w, err)
		return
	}
	sess, _ := s.manager.Session(id)
	s.writeJSON(w, http.StatusOK, s.sessionBody(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Abandon(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProviderOrder is the bare order-creation surface, decoupled from any
// session. Amount validation happens before the provider sees the request.
func (s *Server) handleProviderOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !s.validateBody(w, schemaPaymentOrder, body) {
		return
	}

	var payload struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	order, err := s.gateway.CreateOrder(r.Context(), payload.Amount, payload.Currency, payload.Receipt, payload.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, order)
}

// handlePaymentVerify recomputes a callback's signature. Stateless; does not
// touch any session.
func (s *Server) handlePaymentVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !s.validateBody(w, schemaPaymentVerify, body) {
		return
	}

	var cb models.PaymentCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := s.verifier.Verify(cb); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment verification failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "payment verified successfully"})
}

// handleListReferrals serves the referrer view. A company filter goes through
// the search index when available and falls back to the primary store.
func (s *Server) handleListReferrals(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")

	if company == "" {
		records, err := s.records.ListOrderedByTimestamp(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"referrals": records})
		return
	}

	if s.search != nil {
		if records, err := s.search.SearchByCompany(r.Context(), company); err == nil {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{"referrals": records})
			return
		}
		s.logger.Warn("search backend unavailable, falling back to store", map[string]interface{}{
			"company": company,
		})
	}

	records, err := s.records.QueryByCompany(r.Context(), company)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"referrals": records})
}

func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	if err := s.records.IncrementViewCount(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.Stats(r.Context(), s.feeMinor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
