package models

import "time"

// RawRow is one unparsed spreadsheet row keyed by column header.
type RawRow map[string]string

// StagePayment is one per-stage payment slot on an enrollment row.
type StagePayment struct {
	Amount float64    `json:"amount"`
	Mode   string     `json:"mode"`
	Date   *time.Time `json:"date,omitempty"`
}

// EnrollmentRow is the typed, validated form of one import row. It is
// transient: edited during staging, consumed by the commit pipeline and
// never persisted as-is.
type EnrollmentRow struct {
	Line           int            `json:"line"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	Country        string         `json:"country"`
	PassportID     string         `json:"passport_id"`
	Address        string         `json:"address"`
	CourseTitle    string         `json:"course_title"`
	CourseID       *string        `json:"course_id,omitempty"`
	BatchID        string         `json:"batch_id"`
	JoinDate       *time.Time     `json:"join_date,omitempty"`
	ClassStartDate *time.Time     `json:"class_start_date,omitempty"`
	Status         string         `json:"status"`
	TotalCourseFee float64        `json:"total_course_fee"`
	ReferredBy     string         `json:"referred_by"`
	ReferralAmount float64        `json:"referral_amount"`
	Advance        StagePayment   `json:"advance"`
	Second         StagePayment   `json:"second"`
	Third          StagePayment   `json:"third"`
	Final          StagePayment   `json:"final"`
	Raw            RawRow         `json:"-"`
}

// StagePayments returns the per-stage slots in schedule order.
func (r *EnrollmentRow) StagePayments() []struct {
	Stage   PaymentStage
	Payment StagePayment
} {
	return []struct {
		Stage   PaymentStage
		Payment StagePayment
	}{
		{PaymentStageAdvance, r.Advance},
		{PaymentStageSecond, r.Second},
		{PaymentStageThird, r.Third},
		{PaymentStageFinal, r.Final},
	}
}

// FieldError describes a validation failure on a single row field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RowError captures a per-row commit failure for the outcome report.
type RowError struct {
	Line        int    `json:"line"`
	StudentName string `json:"student_name"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	Row         RawRow `json:"row,omitempty"`
}

// RowResult records what happened to one committed row, including which
// sub-writes landed when the row only partially succeeded.
type RowResult struct {
	Line                   int    `json:"line"`
	Email                  string `json:"email"`
	StudentID              string `json:"student_id,omitempty"`
	StudentCode            string `json:"student_code,omitempty"`
	Skipped                bool   `json:"skipped"`
	StudentCreated         bool   `json:"student_created"`
	LedgerWritten          bool   `json:"ledger_written"`
	ReferralPaymentWritten bool   `json:"referral_payment_written"`
}

// ImportOutcome summarizes a committed batch. Every input row is
// accounted for exactly once: Success + Skipped + len(Errors) == total.
type ImportOutcome struct {
	Success          int         `json:"success"`
	Skipped          int         `json:"skipped"`
	ReferralsCreated int         `json:"referrals_created"`
	Errors           []RowError  `json:"errors"`
	Rows             []RowResult `json:"rows"`
}

// Readiness summarizes a staging session's validation state.
type Readiness struct {
	Total      int `json:"total"`
	ErrorCount int `json:"error_count"`
	ReadyCount int `json:"ready_count"`
}
