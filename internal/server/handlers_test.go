// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "referralbridge/internal/common/errors"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/models"
	"referralbridge/internal/payment"
	"referralbridge/internal/workflow"
)

// ==========================
// Fakes
// ==========================

type fakeOTP struct {
	mu    sync.Mutex
	codes map[string]string
}

func (f *fakeOTP) Issue(ctx context.Context, sessionID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[sessionID] = "123456"
	return nil
}

func (f *fakeOTP) Verify(ctx context.Context, sessionID, email, input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.codes[sessionID]
	if !ok {
		return stderrors.NewOTPNotIssuedError(sessionID)
	}
	if code != input {
		return stderrors.NewOTPMismatchError()
	}
	delete(f.codes, sessionID)
	return nil
}

func (f *fakeOTP) Invalidate(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, sessionID)
	return nil
}

type fakeGateway struct{}

func (f *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.PaymentOrder, error) {
	if amount <= 0 {
		return nil, stderrors.NewInvalidAmountError(amount)
	}
	return &models.PaymentOrder{OrderID: "order_1", KeyID: "rzp_test_key", Amount: amount, Currency: currency}, nil
}

func (f *fakeGateway) Ready() bool   { return true }
func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

type fakeRecords struct {
	mu      sync.Mutex
	records []models.ReferralRequestRecord
	views   map[string]int
}

func (f *fakeRecords) Create(ctx context.Context, rec *models.ReferralRequestRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec2 := *rec
	rec2.ID = fmt.Sprintf("rec_%d", len(f.records)+1)
	f.records = append(f.records, rec2)
	return rec2.ID, nil
}

func (f *fakeRecords) QueryByCompany(ctx context.Context, company string) ([]models.ReferralRequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReferralRequestRecord
	for _, r := range f.records {
		if r.TargetCompany == company {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) ListOrderedByTimestamp(ctx context.Context) ([]models.ReferralRequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ReferralRequestRecord{}, f.records...), nil
}

func (f *fakeRecords) IncrementViewCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[id]++
	return nil
}

func (f *fakeRecords) Stats(ctx context.Context, feeMinor int64) (*models.AdminStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.AdminStats{
		TotalRequests:     len(f.records),
		TotalPaidAmount:   int64(len(f.records)) * feeMinor,
		RequestsByStatus:  map[string]int{},
		RequestsByCompany: map[string]int{},
	}
	for _, r := range f.records {
		stats.RequestsByStatus[r.Status]++
		stats.RequestsByCompany[r.TargetCompany]++
	}
	return stats, nil
}

// ==========================
// Harness
// ==========================

type harness struct {
	ts       *httptest.Server
	records  *fakeRecords
	verifier *payment.Verifier
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithLogger(t, logger.NewTestLogger(t))
}

func newHarnessWithLogger(t *testing.T, log logger.Logger) *harness {
	verifier, err := payment.NewVerifier("test-secret")
	require.NoError(t, err)

	records := &fakeRecords{views: map[string]int{}}
	gateway := &fakeGateway{}

	manager := workflow.NewManager(workflow.Deps{
		OTP:      &fakeOTP{codes: map[string]string{}},
		Gateway:  gateway,
		Verifier: verifier,
		Records:  records,
		Logger:   logger.NewTestLogger(t),
	}, workflow.Settings{
		AmountMinor:     10000,
		Currency:        "INR",
		StageTimeout:    2 * time.Second,
		CheckoutTimeout: 2 * time.Second,
	})

	srv, err := New(manager, gateway, verifier, records, nil, 10000, log)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{ts: ts, records: records, verifier: verifier}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (h *harness) createSession(t *testing.T) string {
	resp, body := h.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func (h *harness) submitForm(t *testing.T, sessionID string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "Jane Seeker")
	mw.WriteField("email", "jane@example.com")
	mw.WriteField("targetCompany", "Acme Corp")
	mw.WriteField("jobId", "JOB-42")

	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="resume"; filename="resume.pdf"`},
		"Content-Type":        {"application/pdf"},
	})
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, h.ts.URL+"/api/sessions/"+sessionID+"/form", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// driveToCheckout walks a session through form, otp and order to an open
// checkout, returning the session and order ids.
func (h *harness) driveToCheckout(t *testing.T) (string, string) {
	id := h.createSession(t)
	h.submitForm(t, id)

	resp, _ := h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp/verify",
		map[string]string{"code": "123456"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/order", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)

	resp, _ = h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return id, orderID
}

// ==========================
// Session Lifecycle
// ==========================

func TestAPI_FullSubmissionFlow(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)
	h.submitForm(t, id)

	resp, _ := h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp/verify",
		map[string]string{"code": "123456"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "email_verified", body["state"])

	resp, body = h.do(t, http.MethodPost, "/api/sessions/"+id+"/order", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID, _ := body["orderId"].(string)
	require.Equal(t, "order_1", orderID)

	resp, body = h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rzp_test_key", body["keyId"])
	assert.Equal(t, float64(10000), body["amount"])

	resp, body = h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/result",
		map[string]string{
			"status":              "completed",
			"razorpay_payment_id": "pay_1",
			"razorpay_order_id":   orderID,
			"razorpay_signature":  h.verifier.Signature(orderID, "pay_1"),
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "submitted", body["state"])
	assert.Equal(t, "rec_1", body["recordId"])

	require.Len(t, h.records.records, 1)
	assert.Equal(t, "Acme Corp", h.records.records[0].TargetCompany)
}

func TestAPI_SubmittedSessionGoneAfterReadout(t *testing.T) {
	h := newHarness(t)
	id, orderID := h.driveToCheckout(t)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/result",
		map[string]string{
			"status":              "completed",
			"razorpay_payment_id": "pay_1",
			"razorpay_order_id":   orderID,
			"razorpay_signature":  h.verifier.Signature(orderID, "pay_1"),
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "submitted", body["state"])

	// The completion response was the read-out; the session is torn down.
	resp, _ = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SessionNotFound(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/api/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DeleteSession(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	resp, _ := h.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_OtpBeforeFormIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(stderrors.ErrCodeValidationFailed), body["code"])
}

func TestAPI_OrderBeforeVerificationIsConflict(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)
	h.submitForm(t, id)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/order", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(stderrors.ErrCodeInvalidTransition), body["code"])
}

// ==========================
// Schema Validation
// ==========================

func TestAPI_OtpVerifySchemaRejectsBadCode(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	for _, payload := range []map[string]string{
		{},
		{"code": "12345"},
		{"code": "abcdef"},
	} {
		resp, _ := h.do(t, http.MethodPost, "/api/sessions/"+id+"/otp/verify", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestAPI_CheckoutResultSchemaRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	resp, _ := h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/result",
		map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CompletedResultRequiresCallbackFields(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	resp, _ := h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/result",
		map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// Provider Surfaces
// ==========================

func TestAPI_ProviderOrderEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/payment/orders",
		map[string]interface{}{"amount": 10000, "currency": "INR"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "order_1", body["orderId"])

	resp, _ = h.do(t, http.MethodPost, "/api/payment/orders",
		map[string]interface{}{"amount": 0, "currency": "INR"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "non-positive amount never reaches the gateway")
}

func TestAPI_PaymentVerifyEndpoint(t *testing.T) {
	h := newHarness(t)

	valid := map[string]string{
		"razorpay_payment_id": "pay_1",
		"razorpay_order_id":   "order_1",
		"razorpay_signature":  h.verifier.Signature("order_1", "pay_1"),
	}
	resp, body := h.do(t, http.MethodPost, "/api/payment/verify", valid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["message"], "a match responds with a message field")
	assert.NotContains(t, body, "error")

	valid["razorpay_signature"] = strings.Repeat("0", 64)
	resp, body = h.do(t, http.MethodPost, "/api/payment/verify", valid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"], "a mismatch responds with an error field")
	assert.NotContains(t, body, "message")
}

// ==========================
// Error Logging
// ==========================

// recordingLogger captures error-level messages for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {}
func (l *recordingLogger) Info(msg string, fields map[string]interface{})  {}
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  {}
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *recordingLogger) WithFields(fields map[string]interface{}) logger.Logger { return l }
func (l *recordingLogger) WithError(err error) logger.Logger                      { return l }

func (l *recordingLogger) logged(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.errors {
		if m == msg {
			return true
		}
	}
	return false
}

func TestAPI_SignatureMismatchLoggedAsSecurityRelevant(t *testing.T) {
	rec := &recordingLogger{}
	h := newHarnessWithLogger(t, rec)
	id, orderID := h.driveToCheckout(t)

	resp, body := h.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/result",
		map[string]string{
			"status":              "completed",
			"razorpay_payment_id": "pay_1",
			"razorpay_order_id":   orderID,
			"razorpay_signature":  strings.Repeat("0", 64),
		})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(stderrors.ErrCodeSignatureMismatch), body["code"])
	assert.True(t, rec.logged("security-relevant request rejected"),
		"a tampered callback is logged at error level")
}

// ==========================
// Read Surfaces
// ==========================

func seedRecord(h *harness, company string) string {
	id, _ := h.records.Create(context.Background(), &models.ReferralRequestRecord{
		Name:          "Jane",
		Email:         "jane@example.com",
		TargetCompany: company,
		JobID:         "J1",
		PaymentID:     "pay_1",
		OrderID:       "order_1",
		PaymentStatus: "paid",
		Status:        "pending",
	})
	return id
}

func TestAPI_ListReferralsByCompany(t *testing.T) {
	h := newHarness(t)
	seedRecord(h, "Acme Corp")
	seedRecord(h, "Beta Inc")

	resp, body := h.do(t, http.MethodGet, "/api/referrals?company=Acme+Corp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	referrals, _ := body["referrals"].([]interface{})
	require.Len(t, referrals, 1)

	resp, body = h.do(t, http.MethodGet, "/api/referrals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	referrals, _ = body["referrals"].([]interface{})
	assert.Len(t, referrals, 2)
}

func TestAPI_RecordView(t *testing.T) {
	h := newHarness(t)
	id := seedRecord(h, "Acme Corp")

	resp, _ := h.do(t, http.MethodPost, "/api/referrals/"+id+"/view", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, h.records.views[id])
}

func TestAPI_AdminStats(t *testing.T) {
	h := newHarness(t)
	seedRecord(h, "Acme Corp")
	seedRecord(h, "Acme Corp")

	resp, body := h.do(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["totalRequests"])
	assert.Equal(t, float64(20000), body["totalPaidAmount"])
}

func TestAPI_Health(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
