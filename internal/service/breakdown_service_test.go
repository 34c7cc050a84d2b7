package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type stubBreakdownStudents struct {
	students []models.StudentDetail
}

func (s *stubBreakdownStudents) ListForBreakdown(_ context.Context, status models.StudentStatus, studentID string) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, st := range s.students {
		if status != "" && st.Status != status {
			continue
		}
		if studentID != "" && st.ID != studentID {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

type stubBreakdownLedger struct {
	entries []models.PaymentLedgerEntry
}

func (s *stubBreakdownLedger) ListLedgerEntries(_ context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error) {
	var out []models.PaymentLedgerEntry
	for _, e := range s.entries {
		if filter.From != nil && e.PaymentDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.PaymentDate.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type memoryCache struct {
	values map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = map[string][]byte{}
	}
	c.values[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, _ string) error {
	c.values = map[string][]byte{}
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func studentDetail(id, code, name string, fee float64, status models.StudentStatus) models.StudentDetail {
	return models.StudentDetail{Student: models.Student{
		ID: id, Code: code, FullName: name, TotalCourseFee: fee, Status: status,
	}}
}

func entry(studentID string, stage models.PaymentStage, amount float64, date time.Time) models.PaymentLedgerEntry {
	return models.PaymentLedgerEntry{
		StudentID: studentID, Stage: stage, Amount: amount,
		PaymentMode: "Bank Transfer", PaymentDate: date,
	}
}

func TestBreakdownBalanceIsExact(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 500, day(2025, 2, 1)),
		entry("s1", models.PaymentStageSecond, 300, day(2025, 3, 1)),
		entry("s1", "Registration Fee", 50, day(2025, 3, 15)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	result, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, 500.0, row.Advance.Amount)
	assert.Equal(t, 300.0, row.Second.Amount)
	assert.Equal(t, 50.0, row.Other.Amount)
	assert.Equal(t, 850.0, row.Paid)
	assert.Equal(t, 150.0, row.Balance)
	assert.Equal(t, "15/03/2025", row.Other.Dates)
	require.NotNil(t, row.LastPaymentAt)
	assert.Equal(t, day(2025, 3, 15), *row.LastPaymentAt)
}

func TestBreakdownRepeatStagePaymentsGoToOther(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 200, day(2025, 2, 1)),
		entry("s1", models.PaymentStageAdvance, 100, day(2025, 2, 10)),
		entry("s1", models.PaymentStageThird, 250, day(2025, 4, 1)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	result, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)
	row := result.Rows[0]

	assert.Equal(t, 200.0, row.Advance.Amount, "first advance entry fills the column")
	assert.Equal(t, 350.0, row.Other.Amount, "repeat advance and third-stage entries group under other")
	assert.Equal(t, "10/02/2025, 01/04/2025", row.Other.Dates)
	assert.Equal(t, 450.0, row.Balance)
}

func TestBreakdownStageFilterRestrictsRowsNotColumns(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
		studentDetail("s2", "ATZ-2025-002", "Bob Ong", 800, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 500, day(2025, 2, 1)),
		entry("s1", models.PaymentStageFinal, 500, day(2025, 6, 1)),
		entry("s2", models.PaymentStageAdvance, 400, day(2025, 2, 5)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	result, err := svc.Compute(context.Background(), models.BreakdownFilter{Stage: "Final"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "s1", row.StudentID)
	// the stage filter selects rows; the other columns keep their values
	assert.Equal(t, 500.0, row.Advance.Amount)
	assert.Equal(t, 500.0, row.Final.Amount)
	assert.Equal(t, 0.0, row.Balance)
}

func TestBreakdownStageFilterOtherMatchesFreeTextStages(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
		studentDetail("s2", "ATZ-2025-002", "Bob Ong", 800, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", "Registration Fee", 50, day(2025, 3, 15)),
		entry("s2", models.PaymentStageAdvance, 400, day(2025, 2, 5)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	// a free-text stage is shown under Other, so it satisfies the
	// Other presence filter
	result, err := svc.Compute(context.Background(), models.BreakdownFilter{Stage: "Other"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "s1", result.Rows[0].StudentID)
	assert.Equal(t, 50.0, result.Rows[0].Other.Amount)

	// Third is not a fixed column either
	ledger.entries = append(ledger.entries, entry("s2", models.PaymentStageThird, 100, day(2025, 5, 1)))
	result, err = svc.Compute(context.Background(), models.BreakdownFilter{Stage: "Other"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
}

func TestBreakdownSequenceAssignedAfterFilterAndSort(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
		studentDetail("s2", "ATZ-2025-002", "Bob Ong", 800, models.StudentStatusEnrolled),
		studentDetail("s3", "ATZ-2025-003", "Carol Lim", 900, models.StudentStatusWithdrawn),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 100, day(2025, 3, 1)),
		entry("s2", models.PaymentStageAdvance, 100, day(2025, 2, 1)),
		entry("s3", models.PaymentStageAdvance, 100, day(2025, 1, 1)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	result, err := svc.Compute(context.Background(), models.BreakdownFilter{
		Status: models.StudentStatusEnrolled,
		SortBy: models.BreakdownSortPaymentDate,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, 1, result.Rows[0].Seq)
	assert.Equal(t, "s2", result.Rows[0].StudentID, "earliest payment sorts first")
	assert.Equal(t, 2, result.Rows[1].Seq)
	assert.Equal(t, "s1", result.Rows[1].StudentID)
}

func TestBreakdownMonthWindow(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 500, day(2025, 2, 1)),
		entry("s1", models.PaymentStageSecond, 300, day(2025, 3, 1)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	result, err := svc.Compute(context.Background(), models.BreakdownFilter{Year: 2025, Month: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 500.0, result.Rows[0].Paid, "entries outside the month window are excluded")
}

func TestBreakdownTotalsRecomputedOverFilteredSet(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
		studentDetail("s2", "ATZ-2025-002", "Bob Ong", 800, models.StudentStatusWithdrawn),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 400, day(2025, 2, 1)),
		entry("s2", models.PaymentStageAdvance, 300, day(2025, 2, 2)),
	}}
	svc := NewBreakdownService(students, ledger, nil, 0, nil)

	all, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Totals.Students)
	assert.Equal(t, 1800.0, all.Totals.CourseFees)
	assert.Equal(t, 700.0, all.Totals.PaidTotal)
	assert.Equal(t, 1100.0, all.Totals.BalanceTotal)

	filtered, err := svc.Compute(context.Background(), models.BreakdownFilter{Status: models.StudentStatusEnrolled})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Totals.Students)
	assert.Equal(t, 1000.0, filtered.Totals.CourseFees)
	assert.Equal(t, 400.0, filtered.Totals.PaidTotal)
	assert.Equal(t, 600.0, filtered.Totals.BalanceTotal)
}

func TestBreakdownCacheRoundTrip(t *testing.T) {
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 400, day(2025, 2, 1)),
	}}
	cache := &memoryCache{}
	svc := NewBreakdownService(students, ledger, cache, time.Minute, nil)

	first, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)

	// mutate storage; the cached result must still be served
	ledger.entries = append(ledger.entries, entry("s1", models.PaymentStageSecond, 100, day(2025, 3, 1)))
	second, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)
	assert.Equal(t, first.Totals.PaidTotal, second.Totals.PaidTotal)

	// invalidation drops the cached copy
	svc.Invalidate(context.Background())
	third, err := svc.Compute(context.Background(), models.BreakdownFilter{})
	require.NoError(t, err)
	assert.Equal(t, 500.0, third.Totals.PaidTotal)
}

func TestBreakdownRejectsBadMonth(t *testing.T) {
	svc := NewBreakdownService(&stubBreakdownStudents{}, &stubBreakdownLedger{}, nil, 0, nil)
	_, err := svc.Compute(context.Background(), models.BreakdownFilter{Year: 2025, Month: 13})
	require.Error(t, err)
}
