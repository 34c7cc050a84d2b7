package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/pkg/config"
	"github.com/atz-edu/enroll-api/pkg/storage"
)

func newReportFixture(t *testing.T) *ReportService {
	t.Helper()
	students := &stubBreakdownStudents{students: []models.StudentDetail{
		studentDetail("s1", "ATZ-2025-001", "Alice Tan", 1000, models.StudentStatusEnrolled),
	}}
	ledger := &stubBreakdownLedger{entries: []models.PaymentLedgerEntry{
		entry("s1", models.PaymentStageAdvance, 500, day(2025, 2, 1)),
	}}
	breakdown := NewBreakdownService(students, ledger, nil, 0, nil)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	return NewReportService(breakdown, store, signer, config.ExportsConfig{
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	}, nil)
}

func waitForJob(t *testing.T, svc *ReportService, id string) *models.ExportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(id)
		require.NoError(t, err)
		if job.Status == models.ExportStatusDone || job.Status == models.ExportStatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("export job did not finish in time")
	return nil
}

type stubQueueRecorder struct {
	queue    string
	observed int
	failed   int
}

func (s *stubQueueRecorder) ObserveQueueJob(queue string, failed bool, _ time.Duration) {
	s.queue = queue
	s.observed++
	if failed {
		s.failed++
	}
}

func TestExportJobsAreInstrumented(t *testing.T) {
	svc := newReportFixture(t)
	recorder := &stubQueueRecorder{}
	svc.SetMetrics(recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	job, err := svc.Enqueue(models.ExportFormatCSV, models.BreakdownFilter{}, "op-1")
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)
	svc.Stop()

	assert.Equal(t, 1, recorder.observed)
	assert.Zero(t, recorder.failed)
	assert.Equal(t, "breakdown-export", recorder.queue)
}

func TestExportCSVEndToEnd(t *testing.T) {
	svc := newReportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(models.ExportFormatCSV, models.BreakdownFilter{}, "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	done := waitForJob(t, svc, job.ID)
	require.Equal(t, models.ExportStatusDone, done.Status)
	require.NotEmpty(t, done.ResultURL)

	token := strings.TrimPrefix(done.ResultURL, "/api/v1/exports/")
	f, _, err := svc.Open(token)
	require.NoError(t, err)
	defer f.Close()

	raw, err := io.ReadAll(f)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "ATZ-2025-001")
	assert.Contains(t, content, "500.00")
	assert.Contains(t, content, "TOTAL")
}

func TestExportPDFProducesFile(t *testing.T) {
	svc := newReportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(models.ExportFormatPDF, models.BreakdownFilter{}, "op-1")
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	require.Equal(t, models.ExportStatusDone, done.Status)
	assert.NotEmpty(t, done.FilePath)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newReportFixture(t)
	_, err := svc.Enqueue("xlsx", models.BreakdownFilter{}, "op-1")
	require.Error(t, err)
}

func TestOpenRejectsForgedToken(t *testing.T) {
	svc := newReportFixture(t)
	_, _, err := svc.Open("not-a-real-token")
	require.Error(t, err)
}

func TestJobUnknownID(t *testing.T) {
	svc := newReportFixture(t)
	_, err := svc.Job("ghost")
	require.Error(t, err)
}
