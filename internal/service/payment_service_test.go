package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
)

type stubPaymentRepo struct {
	entries []models.PaymentLedgerEntry
}

func (s *stubPaymentRepo) InsertLedgerEntries(_ context.Context, entries []models.PaymentLedgerEntry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *stubPaymentRepo) ListLedgerEntries(_ context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error) {
	var out []models.PaymentLedgerEntry
	for _, e := range s.entries {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type stubPaymentStudents struct {
	student *models.StudentDetail
	advance float64
}

func (s *stubPaymentStudents) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	if s.student == nil || s.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

func (s *stubPaymentStudents) UpdateAdvancePayment(_ context.Context, _ string, amount float64) error {
	s.advance = amount
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(_ context.Context) { c.calls++ }

func TestRecordPayment(t *testing.T) {
	repo := &stubPaymentRepo{}
	students := &stubPaymentStudents{student: &models.StudentDetail{Student: models.Student{
		ID: "s1", AdvancePayment: 200,
	}}}
	inv := &countingInvalidator{}
	svc := NewPaymentService(repo, students, inv, nil, nil)

	entry, err := svc.Record(context.Background(), "s1", RecordPaymentRequest{
		Stage:       "advance",
		Amount:      300,
		PaymentMode: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStageAdvance, entry.Stage)
	assert.Equal(t, "Cash", entry.PaymentMode)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, 500.0, students.advance, "advance stage refreshes the denormalized field")
	assert.Equal(t, 1, inv.calls)
}

func TestRecordPaymentNonAdvanceLeavesAdvanceField(t *testing.T) {
	repo := &stubPaymentRepo{}
	students := &stubPaymentStudents{student: &models.StudentDetail{Student: models.Student{ID: "s1"}}, advance: -1}
	svc := NewPaymentService(repo, students, nil, nil, nil)

	_, err := svc.Record(context.Background(), "s1", RecordPaymentRequest{Stage: "Final", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, -1.0, students.advance)
}

func TestRecordPaymentUnknownStudent(t *testing.T) {
	svc := NewPaymentService(&stubPaymentRepo{}, &stubPaymentStudents{}, nil, nil, nil)
	_, err := svc.Record(context.Background(), "ghost", RecordPaymentRequest{Stage: "Advance", Amount: 100})
	require.Error(t, err)
}

func TestRecordPaymentRejectsZeroAmount(t *testing.T) {
	students := &stubPaymentStudents{student: &models.StudentDetail{Student: models.Student{ID: "s1"}}}
	svc := NewPaymentService(&stubPaymentRepo{}, students, nil, nil, nil)
	_, err := svc.Record(context.Background(), "s1", RecordPaymentRequest{Stage: "Advance", Amount: 0})
	require.Error(t, err)
}

func TestLedgerScopedToStudent(t *testing.T) {
	repo := &stubPaymentRepo{entries: []models.PaymentLedgerEntry{
		{StudentID: "s1", Stage: models.PaymentStageAdvance, Amount: 100, PaymentDate: time.Now()},
		{StudentID: "s2", Stage: models.PaymentStageAdvance, Amount: 200, PaymentDate: time.Now()},
	}}
	students := &stubPaymentStudents{student: &models.StudentDetail{Student: models.Student{ID: "s1"}}}
	svc := NewPaymentService(repo, students, nil, nil, nil)

	entries, err := svc.Ledger(context.Background(), "s1", models.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100.0, entries[0].Amount)
}
