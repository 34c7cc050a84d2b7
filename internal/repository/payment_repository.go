package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atz-edu/enroll-api/internal/models"
)

// PaymentRepository manages the tuition payment ledger and referral payouts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// InsertLedgerEntries writes a batch of ledger entries in one statement.
func (r *PaymentRepository) InsertLedgerEntries(ctx context.Context, entries []models.PaymentLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO payment_ledger (id, student_id, stage, amount, payment_mode, payment_date, created_at)
        VALUES (:id, :student_id, :stage, :amount, :payment_mode, :payment_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entries); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// InsertReferralPayment records a commission payout for an enrollment.
func (r *PaymentRepository) InsertReferralPayment(ctx context.Context, entry *models.ReferralPaymentEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO referral_payments (id, referral_id, student_id, amount, payment_date, method, notes, created_at)
        VALUES (:id, :referral_id, :student_id, :amount, :payment_date, :method, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert referral payment: %w", err)
	}
	return nil
}

// ListLedgerEntries returns ledger entries matching the filter ordered
// by payment date. The reconciliation read path loads the full ledger
// through this.
func (r *PaymentRepository) ListLedgerEntries(ctx context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error) {
	base := "SELECT id, student_id, stage, amount, payment_mode, payment_date, created_at FROM payment_ledger"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(stage) = LOWER($%d)", len(args)+1))
		args = append(args, filter.Stage)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY payment_date ASC, created_at ASC", base, strings.Join(conditions, " AND "))
	var entries []models.PaymentLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// ListReferralPaymentsByReferral returns payouts recorded for a referral.
func (r *PaymentRepository) ListReferralPaymentsByReferral(ctx context.Context, referralID string) ([]models.ReferralPaymentEntry, error) {
	const query = `SELECT id, referral_id, student_id, amount, payment_date, method, notes, created_at
        FROM referral_payments WHERE referral_id = $1 ORDER BY payment_date ASC`
	var entries []models.ReferralPaymentEntry
	if err := r.db.SelectContext(ctx, &entries, query, referralID); err != nil {
		return nil, fmt.Errorf("list referral payments: %w", err)
	}
	return entries, nil
}
