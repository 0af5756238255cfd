// internal/models/referral.go
package models

import "time"

// ResumeHandle describes the file a seeker attached to their draft. Content is
// held in memory until the post-payment upload; it never touches durable
// storage before the payment is verified.
type ResumeHandle struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Content   []byte `json:"-"`
}

// ReferralRequestDraft is the ephemeral, session-owned submission draft. It is
// discarded on abandonment or successful submission.
type ReferralRequestDraft struct {
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	TargetCompany string        `json:"targetCompany"`
	JobID         string        `json:"jobId"`
	Resume        *ResumeHandle `json:"resume,omitempty"`
}

// OtpChallenge is the live verification code for a session. At most one
// instance exists per session; issuing a new one replaces the previous
// (last-issued-wins).
type OtpChallenge struct {
	Code          string `json:"code"`
	IssuedToEmail string `json:"issuedToEmail"`
}

// PaymentOrder is the provider-issued order a checkout runs against. Never
// mutated; its lifetime ends at signature verification. Abandoned orders are
// not reused, a retry creates a fresh one.
type PaymentOrder struct {
	OrderID  string `json:"orderId"`
	KeyID    string `json:"keyId"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// PaymentCallback is the provider's completion payload. Consumed exactly once
// by signature verification.
type PaymentCallback struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// CheckoutParams is everything the browser-side checkout needs to open.
type CheckoutParams struct {
	KeyID    string            `json:"keyId"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	OrderID  string            `json:"orderId"`
	Prefill  CheckoutPrefill   `json:"prefill"`
	Notes    map[string]string `json:"notes"`
}

type CheckoutPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ReferralRequestRecord is the durable contract the referrer and admin views
// depend on. Field names and presence semantics are load-bearing: an empty
// ResumeURL means the upload failed after a successful payment.
type ReferralRequestRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	TargetCompany string    `json:"targetCompany"`
	JobID         string    `json:"jobId"`
	ResumeURL     string    `json:"resumeUrl"`
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	PaymentStatus string    `json:"paymentStatus"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	ViewCount     int       `json:"viewCount"`
}

// AdminStats is the aggregate the admin dashboard reads.
type AdminStats struct {
	TotalRequests     int            `json:"totalRequests"`
	TotalPaidAmount   int64          `json:"totalPaidAmount"` // minor units
	RequestsByStatus  map[string]int `json:"requestsByStatus"`
	RequestsByCompany map[string]int `json:"requestsByCompany"`
}
