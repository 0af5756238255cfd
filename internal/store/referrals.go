// internal/store/referrals.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"referralbridge/internal/common/logger"
	"referralbridge/internal/models"
)

var (
	ErrRecordInsertFailed = errors.New("RECORD_INSERT_FAILED")
	ErrDuplicateOrder     = errors.New("DUPLICATE_ORDER")
)

// Store is the document-store collaborator for referral request records. A
// unique index on order_id backs up the exactly-once record guarantee.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "referral-store"}),
	}
}

// Create persists exactly one referral request record and returns its id.
// Caller guarantees payment verification happened first; nothing here is
// reachable for unverified payments.
func (s *Store) Create(ctx context.Context, rec *models.ReferralRequestRecord) (string, error) {
	id := uuid.New().String()
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referral_requests (
			id, name, email, target_company, job_id, resume_url,
			payment_id, order_id, payment_status, created_at, status, view_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id,
		rec.Name,
		rec.Email,
		rec.TargetCompany,
		rec.JobID,
		rec.ResumeURL,
		rec.PaymentID,
		rec.OrderID,
		rec.PaymentStatus,
		ts.Format(time.RFC3339),
		rec.Status,
		rec.ViewCount,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("%w: order %s already recorded", ErrDuplicateOrder, rec.OrderID)
		}
		return "", fmt.Errorf("%w: %v", ErrRecordInsertFailed, err)
	}

	s.logger.Info("referral request recorded", map[string]interface{}{
		"id":            id,
		"targetCompany": rec.TargetCompany,
		"orderId":       rec.OrderID,
	})
	return id, nil
}

// QueryByCompany returns requests directed at a target company, newest first.
func (s *Store) QueryByCompany(ctx context.Context, company string) ([]models.ReferralRequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, target_company, job_id, resume_url,
		       payment_id, order_id, payment_status, created_at, status, view_count
		FROM referral_requests
		WHERE target_company = $1
		ORDER BY created_at DESC`, company)
	if err != nil {
		return nil, fmt.Errorf("query by company failed: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListOrderedByTimestamp returns every request, newest first (admin view).
func (s *Store) ListOrderedByTimestamp(ctx context.Context) ([]models.ReferralRequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, target_company, job_id, resume_url,
		       payment_id, order_id, payment_status, created_at, status, view_count
		FROM referral_requests
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// IncrementViewCount bumps a record's referrer-view counter.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE referral_requests SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("view count update failed: %w", err)
	}
	return nil
}

// Stats aggregates the admin dashboard numbers. feeMinor is the fixed referral
// fee; every persisted record represents one verified payment of that amount.
func (s *Store) Stats(ctx context.Context, feeMinor int64) (*models.AdminStats, error) {
	stats := &models.AdminStats{
		RequestsByStatus:  map[string]int{},
		RequestsByCompany: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_company, status, COUNT(*)
		FROM referral_requests
		GROUP BY target_company, status`)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var company, status string
		var count int
		if err := rows.Scan(&company, &status, &count); err != nil {
			return nil, fmt.Errorf("stats scan failed: %w", err)
		}
		stats.TotalRequests += count
		stats.RequestsByStatus[status] += count
		stats.RequestsByCompany[company] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats rows failed: %w", err)
	}

	stats.TotalPaidAmount = int64(stats.TotalRequests) * feeMinor
	return stats, nil
}

func scanRecords(rows *sql.Rows) ([]models.ReferralRequestRecord, error) {
	var out []models.ReferralRequestRecord
	for rows.Next() {
		var rec models.ReferralRequestRecord
		var createdAt string
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Email, &rec.TargetCompany, &rec.JobID,
			&rec.ResumeURL, &rec.PaymentID, &rec.OrderID, &rec.PaymentStatus,
			&createdAt, &rec.Status, &rec.ViewCount,
		); err != nil {
			return nil, fmt.Errorf("record scan failed: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("record rows failed: %w", err)
	}
	return out, nil
}
