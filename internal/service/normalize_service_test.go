package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/pkg/spreadsheet"
)

func testCourses() []models.Course {
	return []models.Course{
		{ID: "c1", Title: "Data Engineering", Fee: 1000, Active: true},
		{ID: "c2", Title: "Cloud Architecture", Fee: 1500, Active: true},
	}
}

func TestNormalizeValidRow(t *testing.T) {
	n := NewNormalizer(testCourses())
	row, errs := n.Normalize(models.RawRow{
		spreadsheet.ColFullName:      "Alice Tan",
		spreadsheet.ColEmail:         " alice@example.com ",
		spreadsheet.ColPhone:         "+60123456789",
		spreadsheet.ColCourse:        "DATA engineering",
		spreadsheet.ColJoinDate:      "15/2/2025",
		spreadsheet.ColStatus:        "enrolled",
		spreadsheet.ColTotalFee:      "1,000",
		spreadsheet.ColAdvanceAmount: "$500",
		spreadsheet.ColAdvanceMode:   "Cash",
		spreadsheet.ColAdvanceDate:   "16/2/2025",
	}, 1)

	require.Empty(t, errs)
	assert.Equal(t, "alice@example.com", row.Email)
	require.NotNil(t, row.CourseID)
	assert.Equal(t, "c1", *row.CourseID)
	assert.Equal(t, "Data Engineering", row.CourseTitle)
	assert.Equal(t, "Enrolled", row.Status)
	require.NotNil(t, row.JoinDate)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), *row.JoinDate)
	assert.Equal(t, 1000.0, row.TotalCourseFee)
	assert.Equal(t, 500.0, row.Advance.Amount)
	require.NotNil(t, row.Advance.Date)
	assert.Equal(t, time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC), *row.Advance.Date)
}

func TestNormalizeRequiredFields(t *testing.T) {
	n := NewNormalizer(testCourses())
	_, errs := n.Normalize(models.RawRow{}, 1)

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "full_name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "join_date")
}

func TestNormalizeEmailShape(t *testing.T) {
	n := NewNormalizer(nil)
	_, errs := n.Normalize(models.RawRow{
		spreadsheet.ColFullName: "Alice Tan",
		spreadsheet.ColEmail:    "not an email",
		spreadsheet.ColPhone:    "+60123",
		spreadsheet.ColJoinDate: "1/1/2025",
	}, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)
}

func TestNormalizeUnknownCourse(t *testing.T) {
	n := NewNormalizer(testCourses())
	row, errs := n.Normalize(models.RawRow{
		spreadsheet.ColFullName: "Alice Tan",
		spreadsheet.ColEmail:    "alice@example.com",
		spreadsheet.ColPhone:    "+60123",
		spreadsheet.ColJoinDate: "1/1/2025",
		spreadsheet.ColCourse:   "Basket Weaving",
	}, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, "course_title", errs[0].Field)
	assert.Contains(t, errs[0].Message, "not found")
	assert.Nil(t, row.CourseID)
}

func TestNormalizeUnknownStatusKeepsRawValue(t *testing.T) {
	n := NewNormalizer(nil)
	row, errs := n.Normalize(models.RawRow{
		spreadsheet.ColFullName: "Alice Tan",
		spreadsheet.ColEmail:    "alice@example.com",
		spreadsheet.ColPhone:    "+60123",
		spreadsheet.ColJoinDate: "1/1/2025",
		spreadsheet.ColStatus:   "vibing",
	}, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, "status", errs[0].Field)
	assert.Equal(t, "vibing", row.Status)
}

func TestNormalizeUnparseableJoinDateIsNeverCoerced(t *testing.T) {
	n := NewNormalizer(nil)
	row, errs := n.Normalize(models.RawRow{
		spreadsheet.ColFullName: "Alice Tan",
		spreadsheet.ColEmail:    "alice@example.com",
		spreadsheet.ColPhone:    "+60123",
		spreadsheet.ColJoinDate: "soonish",
	}, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, "join_date", errs[0].Field)
	assert.Nil(t, row.JoinDate, "an unparseable join date must surface as an error, not a guessed value")
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"slash day first", "15/2/2025", time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"padded slash", "05/02/2025", time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)},
		{"dash", "15-2-2025", time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"iso", "2025-02-15", time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		// 45719 days after the 1899-12-30 epoch is 2025-03-03
		{"spreadsheet serial", "45719", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlexibleDate(tt.raw)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseFlexibleDateDayFirstNotMonthFirst(t *testing.T) {
	got, err := ParseFlexibleDate("3/4/2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), *got, "3/4 is the 3rd of April, not March 4th")
}

func TestParseFlexibleDateBlank(t *testing.T) {
	got, err := ParseFlexibleDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseFlexibleDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"tomorrow", "13/13/2025", "99999999"} {
		_, err := ParseFlexibleDate(raw)
		assert.Error(t, err, raw)
	}
}
