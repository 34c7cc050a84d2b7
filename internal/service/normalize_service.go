package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/pkg/spreadsheet"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts accepted for text dates, day before month.
var dateLayouts = []string{
	"2/1/2006",
	"02/01/2006",
	"2-1-2006",
	"02-01-2006",
	"2006-01-02",
}

// Normalizer turns raw spreadsheet rows into typed enrollment rows,
// reporting field-level validation errors without rejecting the row.
type Normalizer struct {
	coursesByTitle map[string]models.Course
}

// NewNormalizer constructs a Normalizer over the known course list.
func NewNormalizer(courses []models.Course) *Normalizer {
	byTitle := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		byTitle[strings.ToLower(strings.TrimSpace(c.Title))] = c
	}
	return &Normalizer{coursesByTitle: byTitle}
}

// Normalize parses and validates one raw row. The returned row is
// always populated as far as parsing got, so staging can render and
// edit rows that carry errors.
func (n *Normalizer) Normalize(raw models.RawRow, line int) (models.EnrollmentRow, []models.FieldError) {
	var errs []models.FieldError
	row := models.EnrollmentRow{
		Line:       line,
		FullName:   strings.TrimSpace(raw[spreadsheet.ColFullName]),
		Email:      strings.TrimSpace(raw[spreadsheet.ColEmail]),
		Phone:      strings.TrimSpace(raw[spreadsheet.ColPhone]),
		Country:    strings.TrimSpace(raw[spreadsheet.ColCountry]),
		PassportID: strings.TrimSpace(raw[spreadsheet.ColPassportID]),
		Address:    strings.TrimSpace(raw[spreadsheet.ColAddress]),
		BatchID:    strings.TrimSpace(raw[spreadsheet.ColBatch]),
		Status:     strings.TrimSpace(raw[spreadsheet.ColStatus]),
		ReferredBy: strings.TrimSpace(raw[spreadsheet.ColReferredBy]),
		Raw:        raw,
	}

	if row.FullName == "" {
		errs = append(errs, models.FieldError{Field: "full_name", Message: "full name is required"})
	}
	if row.Email == "" {
		errs = append(errs, models.FieldError{Field: "email", Message: "email is required"})
	} else if !emailPattern.MatchString(row.Email) {
		errs = append(errs, models.FieldError{Field: "email", Message: "email must look like local@domain"})
	}
	if row.Phone == "" {
		errs = append(errs, models.FieldError{Field: "phone", Message: "phone is required"})
	}

	row.CourseTitle = strings.TrimSpace(raw[spreadsheet.ColCourse])
	if row.CourseTitle != "" {
		if course, ok := n.coursesByTitle[strings.ToLower(row.CourseTitle)]; ok {
			id := course.ID
			row.CourseID = &id
			row.CourseTitle = course.Title
		} else {
			errs = append(errs, models.FieldError{Field: "course_title", Message: fmt.Sprintf("course %q not found", row.CourseTitle)})
		}
	}

	if row.Status != "" {
		if status, ok := models.ParseStudentStatus(row.Status); ok {
			row.Status = string(status)
		} else {
			errs = append(errs, models.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", row.Status)})
		}
	}

	joinDate, err := ParseFlexibleDate(raw[spreadsheet.ColJoinDate])
	if err != nil {
		errs = append(errs, models.FieldError{Field: "join_date", Message: err.Error()})
	} else if joinDate == nil {
		errs = append(errs, models.FieldError{Field: "join_date", Message: "join date is required"})
	} else {
		row.JoinDate = joinDate
	}

	classStart, err := ParseFlexibleDate(raw[spreadsheet.ColClassStartDate])
	if err != nil {
		errs = append(errs, models.FieldError{Field: "class_start_date", Message: err.Error()})
	} else {
		row.ClassStartDate = classStart
	}

	fee, err := parseAmount(raw[spreadsheet.ColTotalFee])
	if err != nil {
		errs = append(errs, models.FieldError{Field: "total_course_fee", Message: err.Error()})
	} else if fee < 0 {
		errs = append(errs, models.FieldError{Field: "total_course_fee", Message: "total course fee must not be negative"})
	} else {
		row.TotalCourseFee = fee
	}

	refAmount, err := parseAmount(raw[spreadsheet.ColReferralAmount])
	if err != nil {
		errs = append(errs, models.FieldError{Field: "referral_amount", Message: err.Error()})
	} else {
		row.ReferralAmount = refAmount
	}

	row.Advance = n.parseStage(raw, "advance", spreadsheet.ColAdvanceAmount, spreadsheet.ColAdvanceMode, spreadsheet.ColAdvanceDate, &errs)
	row.Second = n.parseStage(raw, "second", spreadsheet.ColSecondAmount, spreadsheet.ColSecondMode, spreadsheet.ColSecondDate, &errs)
	row.Third = n.parseStage(raw, "third", spreadsheet.ColThirdAmount, spreadsheet.ColThirdMode, spreadsheet.ColThirdDate, &errs)
	row.Final = n.parseStage(raw, "final", spreadsheet.ColFinalAmount, spreadsheet.ColFinalMode, spreadsheet.ColFinalDate, &errs)

	return row, errs
}

func (n *Normalizer) parseStage(raw models.RawRow, field, amountCol, modeCol, dateCol string, errs *[]models.FieldError) models.StagePayment {
	payment := models.StagePayment{Mode: strings.TrimSpace(raw[modeCol])}

	amount, err := parseAmount(raw[amountCol])
	if err != nil {
		*errs = append(*errs, models.FieldError{Field: field + "_amount", Message: err.Error()})
	} else {
		payment.Amount = amount
	}

	date, err := ParseFlexibleDate(raw[dateCol])
	if err != nil {
		*errs = append(*errs, models.FieldError{Field: field + "_date", Message: err.Error()})
	} else {
		payment.Date = date
	}

	return payment
}

// ParseFlexibleDate accepts a spreadsheet serial number or a
// day/month/year text date. Blank input returns nil without error; a
// value that parses as neither is an error, never coerced to "now".
func ParseFlexibleDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial <= 0 || serial > 200000 {
			return nil, fmt.Errorf("date serial %q out of range", raw)
		}
		days := math.Floor(serial)
		frac := serial - days
		t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
		return &t, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unparseable date %q (expected day/month/year)", raw)
}

func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
