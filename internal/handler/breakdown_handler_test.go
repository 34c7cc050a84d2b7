package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/service"
)

type fakeBreakdownStudents struct {
	students []models.StudentDetail
}

func (f *fakeBreakdownStudents) ListForBreakdown(_ context.Context, status models.StudentStatus, studentID string) ([]models.StudentDetail, error) {
	out := make([]models.StudentDetail, 0, len(f.students))
	for _, s := range f.students {
		if status != "" && s.Status != status {
			continue
		}
		if studentID != "" && s.ID != studentID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeBreakdownLedger struct {
	entries []models.PaymentLedgerEntry
}

func (f *fakeBreakdownLedger) ListLedgerEntries(_ context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error) {
	out := make([]models.PaymentLedgerEntry, 0, len(f.entries))
	for _, e := range f.entries {
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

func buildBreakdownRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	paid := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	students := &fakeBreakdownStudents{students: []models.StudentDetail{
		{Student: models.Student{
			ID:             "s1",
			Code:           "ATZ-2025-001",
			FullName:       "Aye Chan",
			Status:         models.StudentStatusEnrolled,
			TotalCourseFee: 1000,
		}},
	}}
	ledger := &fakeBreakdownLedger{entries: []models.PaymentLedgerEntry{
		{ID: "p1", StudentID: "s1", Stage: models.PaymentStageAdvance, Amount: 500, PaymentMode: "Cash", PaymentDate: paid},
	}}

	svc := service.NewBreakdownService(students, ledger, nil, 0, nil)
	h := NewBreakdownHandler(svc)

	router := gin.New()
	router.GET("/payments/breakdown", h.Get)
	return router
}

func TestBreakdownEndpointSuccess(t *testing.T) {
	router := buildBreakdownRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/payments/breakdown", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"ATZ-2025-001"`)
	require.Contains(t, resp.Body.String(), `"balance":500`)
}

func TestBreakdownEndpointRejectsBadMonth(t *testing.T) {
	router := buildBreakdownRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/payments/breakdown?month=13&year=2025", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBreakdownEndpointRejectsUnknownStatus(t *testing.T) {
	router := buildBreakdownRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/payments/breakdown?status=graduating", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBreakdownEndpointRejectsMalformedDate(t *testing.T) {
	router := buildBreakdownRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/payments/breakdown?from=15-03-2025", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
