package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/pkg/config"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/export"
	"github.com/atz-edu/enroll-api/pkg/jobs"
	"github.com/atz-edu/enroll-api/pkg/storage"
)

// ReportService renders the payment breakdown to downloadable files.
// Exports run asynchronously on a worker queue; finished files live on
// local disk and are fetched through short-lived signed URLs.
type ReportService struct {
	breakdown *BreakdownService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	cfg       config.ExportsConfig
	metrics   queueRecorder
	logger    *zap.Logger

	mu      sync.RWMutex
	exports map[string]*models.ExportJob
}

// NewReportService constructs a ReportService and its worker queue.
func NewReportService(breakdown *BreakdownService, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.ExportsConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		breakdown: breakdown,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		store:     store,
		signer:    signer,
		cfg:       cfg,
		logger:    logger,
		exports:   make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("breakdown-export", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		OnResult:   s.observeJob,
		Logger:     logger,
	})
	return s
}

type queueRecorder interface {
	ObserveQueueJob(queue string, failed bool, duration time.Duration)
}

// SetMetrics attaches queue instrumentation. Optional.
func (s *ReportService) SetMetrics(m queueRecorder) {
	s.metrics = m
}

func (s *ReportService) observeJob(_ jobs.Job, err error, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveQueueJob("breakdown-export", err != nil, duration)
	}
}

// Start launches the export workers and the stale-file sweeper.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.ResultTTL > 0 {
		go s.sweep(ctx)
	}
}

// Stop drains the export workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Enqueue registers a new export job and hands it to the workers.
func (s *ReportService) Enqueue(format models.ExportFormat, filter models.BreakdownFilter, createdBy string) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Format:    format,
		Filter:    filter,
		Status:    models.ExportStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.exports[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "breakdown_export"}); err != nil {
		s.setFailed(job.ID, err.Error())
		return nil, appErrors.Wrap(err, "EXPORT_FAILED", 500, "failed to enqueue export")
	}
	return s.snapshot(job.ID), nil
}

// Job returns the current state of an export job.
func (s *ReportService) Job(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.ErrNotFound
	}
	return job, nil
}

// Open validates a signed download token and opens the exported file.
func (s *ReportService) Open(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, "INVALID_TOKEN", 403, "download link is invalid or expired")
	}

	job := s.snapshot(jobID)
	if job == nil || job.Status != models.ExportStatusDone {
		return nil, "", appErrors.ErrNotFound
	}

	f, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, "EXPORT_GONE", 404, "exported file no longer available")
	}
	return f, relPath, nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	s.setStatus(job.ID, models.ExportStatusProcessing)

	snap := s.snapshot(job.ID)
	if snap == nil {
		return fmt.Errorf("export job %s vanished", job.ID)
	}

	result, err := s.breakdown.Compute(ctx, snap.Filter)
	if err != nil {
		s.setFailed(job.ID, err.Error())
		return err
	}

	dataset := breakdownDataset(result)
	var payload []byte
	var ext string
	switch snap.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Payment Breakdown")
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		s.setFailed(job.ID, err.Error())
		return err
	}

	filename := fmt.Sprintf("breakdown-%s.%s", job.ID, ext)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		s.setFailed(job.ID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.setFailed(job.ID, err.Error())
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if j, ok := s.exports[job.ID]; ok {
		j.Status = models.ExportStatusDone
		j.FilePath = relPath
		j.ResultURL = "/api/v1/exports/" + token
		j.FinishedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("breakdown export finished",
		zap.String("job_id", job.ID),
		zap.String("format", string(snap.Format)),
		zap.Int("rows", len(result.Rows)))
	return nil
}

func (s *ReportService) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ResultTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.CleanupOlderThan(s.cfg.ResultTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("stale exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

func (s *ReportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.exports[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (s *ReportService) setStatus(id string, status models.ExportStatus) {
	s.mu.Lock()
	if j, ok := s.exports[id]; ok {
		j.Status = status
	}
	s.mu.Unlock()
}

func (s *ReportService) setFailed(id, msg string) {
	now := time.Now().UTC()
	s.mu.Lock()
	if j, ok := s.exports[id]; ok {
		j.Status = models.ExportStatusFailed
		j.Error = msg
		j.FinishedAt = &now
	}
	s.mu.Unlock()
}

// breakdownDataset flattens a breakdown into the tabular export shape.
func breakdownDataset(b *models.Breakdown) export.Dataset {
	headers := []string{"No", "Code", "Student", "Course", "Status", "Total Fee",
		"Advance", "Second", "Final", "Other", "Paid", "Balance"}

	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	rows := make([]map[string]string, 0, len(b.Rows)+1)
	for _, r := range b.Rows {
		rows = append(rows, map[string]string{
			"No":        strconv.Itoa(r.Seq),
			"Code":      r.StudentCode,
			"Student":   r.FullName,
			"Course":    r.CourseTitle,
			"Status":    string(r.Status),
			"Total Fee": money(r.TotalCourseFee),
			"Advance":   money(r.Advance.Amount),
			"Second":    money(r.Second.Amount),
			"Final":     money(r.Final.Amount),
			"Other":     money(r.Other.Amount),
			"Paid":      money(r.Paid),
			"Balance":   money(r.Balance),
		})
	}
	rows = append(rows, map[string]string{
		"No":        "",
		"Code":      "",
		"Student":   "TOTAL",
		"Course":    "",
		"Status":    "",
		"Total Fee": money(b.Totals.CourseFees),
		"Advance":   money(b.Totals.AdvanceTotal),
		"Second":    money(b.Totals.SecondTotal),
		"Final":     money(b.Totals.FinalTotal),
		"Other":     money(b.Totals.OtherTotal),
		"Paid":      money(b.Totals.PaidTotal),
		"Balance":   money(b.Totals.BalanceTotal),
	})

	return export.Dataset{Headers: headers, Rows: rows}
}
