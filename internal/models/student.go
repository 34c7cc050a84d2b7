package models

import (
	"strings"
	"time"
)

// StudentStatus represents the enrollment lifecycle stage of a student.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusAttendSessions StudentStatus = "Attend sessions"
	StudentStatusOfferLetter    StudentStatus = "Offer letter"
	StudentStatusPaymentPending StudentStatus = "Payment pending"
	StudentStatusEnrolled       StudentStatus = "Enrolled"
	StudentStatusCompleted      StudentStatus = "Completed"
	StudentStatusWithdrawn      StudentStatus = "Withdrawn"
)

// DefaultStudentStatus is applied when an imported row carries no
// recognizable status at commit time.
const DefaultStudentStatus = StudentStatusAttendSessions

// KnownStudentStatuses lists every accepted status value.
var KnownStudentStatuses = []StudentStatus{
	StudentStatusAttendSessions,
	StudentStatusOfferLetter,
	StudentStatusPaymentPending,
	StudentStatusEnrolled,
	StudentStatusCompleted,
	StudentStatusWithdrawn,
}

// ParseStudentStatus matches raw against the known statuses, ignoring case.
func ParseStudentStatus(raw string) (StudentStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range KnownStudentStatuses {
		if strings.EqualFold(string(s), raw) {
			return s, true
		}
	}
	return "", false
}

// Student represents an enrolled learner.
type Student struct {
	ID             string        `db:"id" json:"id"`
	Code           string        `db:"code" json:"code"`
	FullName       string        `db:"full_name" json:"full_name"`
	Email          string        `db:"email" json:"email"`
	Phone          string        `db:"phone" json:"phone"`
	Address        string        `db:"address" json:"address"`
	Country        string        `db:"country" json:"country"`
	PassportID     string        `db:"passport_id" json:"passport_id"`
	CourseID       *string       `db:"course_id" json:"course_id,omitempty"`
	BatchID        *string       `db:"batch_id" json:"batch_id,omitempty"`
	JoinDate       time.Time     `db:"join_date" json:"join_date"`
	ClassStartDate *time.Time    `db:"class_start_date" json:"class_start_date,omitempty"`
	Status         StudentStatus `db:"status" json:"status"`
	TotalCourseFee float64       `db:"total_course_fee" json:"total_course_fee"`
	AdvancePayment float64       `db:"advance_payment" json:"advance_payment"`
	ReferralID     *string       `db:"referral_id" json:"referral_id,omitempty"`
	Notes          string        `db:"notes" json:"notes"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	CourseID  string
	BatchID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with course and referral context.
type StudentDetail struct {
	Student
	CourseTitle  *string `db:"course_title" json:"course_title,omitempty"`
	ReferralName *string `db:"referral_name" json:"referral_name,omitempty"`
	ReferralCode *string `db:"referral_code" json:"referral_code,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
