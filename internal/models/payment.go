package models

import (
	"strings"
	"time"
)

// PaymentStage names a slot in the tuition payment schedule. The column
// is free text in storage; unrecognized values are grouped under Other
// by the breakdown engine rather than rejected.
type PaymentStage string

// Fixed payment stages.
const (
	PaymentStageAdvance PaymentStage = "Advance"
	PaymentStageSecond  PaymentStage = "Second"
	PaymentStageThird   PaymentStage = "Third"
	PaymentStageFinal   PaymentStage = "Final"
	PaymentStageOther   PaymentStage = "Other"
)

// ParsePaymentStage matches raw against the fixed stages, ignoring case.
// Anything unmatched is reported as-is with ok=false.
func ParsePaymentStage(raw string) (PaymentStage, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range []PaymentStage{PaymentStageAdvance, PaymentStageSecond, PaymentStageThird, PaymentStageFinal, PaymentStageOther} {
		if strings.EqualFold(string(s), raw) {
			return s, true
		}
	}
	return PaymentStage(raw), false
}

// DefaultPaymentMode is used when an imported row names no recognizable mode.
const DefaultPaymentMode = "Bank Transfer"

// KnownPaymentModes lists the accepted payment modes.
var KnownPaymentModes = []string{"Bank Transfer", "Cash", "Card", "Cheque", "Online"}

// NormalizePaymentMode maps raw onto a known mode, defaulting rather
// than rejecting unknown values.
func NormalizePaymentMode(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, m := range KnownPaymentModes {
		if strings.EqualFold(m, raw) {
			return m
		}
	}
	return DefaultPaymentMode
}

// PaymentLedgerEntry records a single tuition payment against a student.
type PaymentLedgerEntry struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	Stage       PaymentStage `db:"stage" json:"stage"`
	Amount      float64      `db:"amount" json:"amount"`
	PaymentMode string       `db:"payment_mode" json:"payment_mode"`
	PaymentDate time.Time    `db:"payment_date" json:"payment_date"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// ReferralPaymentEntry records a commission payout tied to an enrollment.
type ReferralPaymentEntry struct {
	ID          string    `db:"id" json:"id"`
	ReferralID  string    `db:"referral_id" json:"referral_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Amount      float64   `db:"amount" json:"amount"`
	PaymentDate time.Time `db:"payment_date" json:"payment_date"`
	Method      string    `db:"method" json:"method"`
	Notes       string    `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LedgerFilter provides filters for listing ledger entries.
type LedgerFilter struct {
	StudentID string
	Stage     string
	From      *time.Time
	To        *time.Time
}
