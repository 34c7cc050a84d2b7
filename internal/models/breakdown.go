package models

import "time"

// BreakdownSort selects the ordering of breakdown rows.
type BreakdownSort string

// Supported breakdown sort keys.
const (
	BreakdownSortPaymentDate BreakdownSort = "payment_date"
	BreakdownSortStatus      BreakdownSort = "status"
)

// BreakdownFilter restricts which students appear in the payment
// breakdown. Filters restrict rows, never the per-stage columns shown.
type BreakdownFilter struct {
	From      *time.Time
	To        *time.Time
	Month     int
	Year      int
	Stage     string
	Status    StudentStatus
	StudentID string
	SortBy    BreakdownSort
	SortOrder string
}

// StageCell is one per-stage column of a breakdown row.
type StageCell struct {
	Amount float64    `json:"amount"`
	Mode   string     `json:"mode,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
}

// OtherCell aggregates every ledger entry outside the fixed columns.
type OtherCell struct {
	Amount float64 `json:"amount"`
	Dates  string  `json:"dates,omitempty"`
}

// StudentBreakdownRow is one reconciliation output row per student.
type StudentBreakdownRow struct {
	Seq            int           `json:"seq"`
	StudentID      string        `json:"student_id"`
	StudentCode    string        `json:"student_code"`
	FullName       string        `json:"full_name"`
	CourseTitle    string        `json:"course_title,omitempty"`
	Status         StudentStatus `json:"status"`
	TotalCourseFee float64       `json:"total_course_fee"`
	Advance        StageCell     `json:"advance"`
	Second         StageCell     `json:"second"`
	Final          StageCell     `json:"final"`
	Other          OtherCell     `json:"other"`
	Paid           float64       `json:"paid"`
	Balance        float64       `json:"balance"`
	LastPaymentAt  *time.Time    `json:"last_payment_at,omitempty"`
}

// BreakdownTotals aggregates the filtered breakdown set.
type BreakdownTotals struct {
	Students     int     `json:"students"`
	CourseFees   float64 `json:"course_fees"`
	AdvanceTotal float64 `json:"advance_total"`
	SecondTotal  float64 `json:"second_total"`
	FinalTotal   float64 `json:"final_total"`
	OtherTotal   float64 `json:"other_total"`
	PaidTotal    float64 `json:"paid_total"`
	BalanceTotal float64 `json:"balance_total"`
}

// Breakdown is the full reconciliation result for a filter.
type Breakdown struct {
	Rows        []StudentBreakdownRow `json:"rows"`
	Totals      BreakdownTotals       `json:"totals"`
	GeneratedAt time.Time             `json:"generated_at"`
}
