package models

import "time"

// Referral represents a referring agent who brings students in.
type Referral struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Address     string    `db:"address" json:"address"`
	BankName    string    `db:"bank_name" json:"bank_name"`
	BankAccount string    `db:"bank_account" json:"bank_account"`
	Notes       string    `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ReferralFilter provides filters for listing referrals.
type ReferralFilter struct {
	Search   string
	Page     int
	PageSize int
}
