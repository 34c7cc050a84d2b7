package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/repository"
	"github.com/atz-edu/enroll-api/pkg/config"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/spreadsheet"
)

type importStudentStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

type importReferralStore interface {
	FindByName(ctx context.Context, name string) (*models.Referral, error)
	Create(ctx context.Context, referral *models.Referral) error
}

type importPaymentStore interface {
	InsertLedgerEntries(ctx context.Context, entries []models.PaymentLedgerEntry) error
	InsertReferralPayment(ctx context.Context, entry *models.ReferralPaymentEntry) error
}

type importCourseStore interface {
	List(ctx context.Context) ([]models.Course, error)
}

type importRecorder interface {
	ObserveImportBatch(success, skipped, failed int)
}

// ImportService owns the bulk enrollment import: template generation,
// upload parsing into a staging session, and the commit pipeline that
// turns staged rows into students, ledger entries and referral payouts.
type ImportService struct {
	// commitMu serializes commits so the read-then-write code allocator
	// never races against another batch in this process.
	commitMu sync.Mutex

	students    importStudentStore
	referrals   importReferralStore
	payments    importPaymentStore
	courses     importCourseStore
	staging     *StagingService
	allocator   *CodeAllocator
	invalidator breakdownInvalidator
	cfg         config.ImportConfig
	metrics     importRecorder
	logger      *zap.Logger
}

// NewImportService constructs an ImportService. invalidator and
// metrics may be nil.
func NewImportService(
	students importStudentStore,
	referrals importReferralStore,
	payments importPaymentStore,
	courses importCourseStore,
	staging *StagingService,
	allocator *CodeAllocator,
	invalidator breakdownInvalidator,
	cfg config.ImportConfig,
	metrics importRecorder,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		students:    students,
		referrals:   referrals,
		payments:    payments,
		courses:     courses,
		staging:     staging,
		allocator:   allocator,
		invalidator: invalidator,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
	}
}

// Template renders the import workbook with a course reference sheet.
func (s *ImportService) Template(ctx context.Context) ([]byte, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "TEMPLATE_FAILED", 500, "failed to load courses for template")
	}
	titles := make([]string, len(courses))
	for i, c := range courses {
		titles[i] = c.Title
	}
	return spreadsheet.WriteTemplate(titles)
}

// ParseAndStage reads an uploaded spreadsheet and opens a staging
// session over its rows.
func (s *ImportService) ParseAndStage(ctx context.Context, r io.Reader, filename string) (*SessionView, error) {
	rows, err := spreadsheet.ParseRows(r, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, "PARSE_FAILED", 400, err.Error())
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file contains no data rows")
	}
	if s.cfg.MaxBatchRows > 0 && len(rows) > s.cfg.MaxBatchRows {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("batch has %d rows, maximum is %d", len(rows), s.cfg.MaxBatchRows))
	}

	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "STAGE_FAILED", 500, "failed to load courses")
	}

	raws := make([]models.RawRow, len(rows))
	for i, row := range rows {
		raws[i] = models.RawRow(row)
	}
	return s.staging.Create(raws, NewNormalizer(courses)), nil
}

// Session returns the current snapshot of a staging session.
func (s *ImportService) Session(id string) (*SessionView, error) {
	return s.staging.Get(id)
}

// EditRow applies one field edit and returns the row's new errors.
func (s *ImportService) EditRow(id string, rowIndex int, field, value string) ([]models.FieldError, error) {
	return s.staging.Edit(id, rowIndex, field, value)
}

// Commit runs the commit pipeline over a staging session's rows. Rows
// are processed strictly in order; one row's failure never aborts the
// batch. The session is discarded once the batch has run.
func (s *ImportService) Commit(ctx context.Context, sessionID string) (*models.ImportOutcome, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	rows, err := s.staging.Rows(sessionID)
	if err != nil {
		return nil, err
	}

	outcome := &models.ImportOutcome{Errors: []models.RowError{}, Rows: []models.RowResult{}}
	wrote := false
	for _, row := range rows {
		result, rowErr, referralCreated := s.commitRow(ctx, row)
		if referralCreated {
			outcome.ReferralsCreated++
		}
		if result.StudentCreated || result.LedgerWritten || result.ReferralPaymentWritten {
			wrote = true
		}
		outcome.Rows = append(outcome.Rows, result)
		switch {
		case rowErr != nil:
			outcome.Errors = append(outcome.Errors, *rowErr)
		case result.Skipped:
			outcome.Skipped++
		default:
			outcome.Success++
		}
	}

	s.staging.Close(sessionID)
	if wrote && s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.ObserveImportBatch(outcome.Success, outcome.Skipped, len(outcome.Errors))
	}
	s.logger.Info("import batch committed",
		zap.String("session_id", sessionID),
		zap.Int("total", len(rows)),
		zap.Int("success", outcome.Success),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("failed", len(outcome.Errors)),
		zap.Int("referrals_created", outcome.ReferralsCreated))
	return outcome, nil
}

// commitRow commits a single row. It returns the row result, a row
// error when the row failed (possibly after partial writes), and
// whether a referral record was auto-created along the way.
func (s *ImportService) commitRow(parent context.Context, row models.EnrollmentRow) (models.RowResult, *models.RowError, bool) {
	result := models.RowResult{Line: row.Line, Email: row.Email}
	fail := func(msg string) (models.RowResult, *models.RowError, bool) {
		return result, &models.RowError{
			Line:        row.Line,
			StudentName: row.FullName,
			Email:       row.Email,
			Message:     msg,
			Row:         row.Raw,
		}, false
	}

	if row.JoinDate == nil {
		return fail("join date is missing or unparseable")
	}

	ctx, cancel := context.WithTimeout(parent, s.rowTimeout())
	defer cancel()

	exists, err := s.students.ExistsByEmail(ctx, row.Email)
	if err != nil {
		return fail("duplicate check failed: " + err.Error())
	}
	if exists {
		result.Skipped = true
		return result, nil, false
	}

	if row.CourseTitle != "" && row.CourseID == nil {
		return fail(fmt.Sprintf("course %q not found", row.CourseTitle))
	}

	// Referral errors are soft: the student is still created, just
	// without the linkage.
	var referralID *string
	var referralCreated bool
	var referralErrMsg string
	if row.ReferredBy != "" {
		id, created, err := s.ResolveReferral(ctx, row.ReferredBy)
		if err != nil {
			referralErrMsg = "referral resolution failed: " + err.Error()
		} else {
			referralID = &id
			referralCreated = created
		}
	}

	status, ok := models.ParseStudentStatus(row.Status)
	if !ok {
		status = models.DefaultStudentStatus
	}

	student := &models.Student{
		Code:           s.allocator.NextStudentCode(ctx),
		FullName:       row.FullName,
		Email:          row.Email,
		Phone:          row.Phone,
		Address:        row.Address,
		Country:        row.Country,
		PassportID:     row.PassportID,
		CourseID:       row.CourseID,
		JoinDate:       *row.JoinDate,
		ClassStartDate: row.ClassStartDate,
		Status:         status,
		TotalCourseFee: row.TotalCourseFee,
		AdvancePayment: row.Advance.Amount,
		ReferralID:     referralID,
	}
	if row.BatchID != "" {
		student.BatchID = &row.BatchID
	}

	if err := s.students.Create(ctx, student); err != nil {
		if repository.IsDuplicate(err) {
			result.Skipped = true
			return result, nil, referralCreated
		}
		res, rowErr, _ := fail("student write failed: " + err.Error())
		return res, rowErr, referralCreated
	}
	result.StudentCreated = true
	result.StudentID = student.ID
	result.StudentCode = student.Code

	entries := s.ledgerEntries(student.ID, row)
	if len(entries) > 0 {
		if err := s.payments.InsertLedgerEntries(ctx, entries); err != nil {
			res, rowErr, _ := fail("ledger write failed: " + err.Error())
			return res, rowErr, referralCreated
		}
		result.LedgerWritten = true
	}

	if referralID != nil && row.ReferralAmount > 0 {
		entry := &models.ReferralPaymentEntry{
			ReferralID:  *referralID,
			StudentID:   student.ID,
			Amount:      row.ReferralAmount,
			PaymentDate: *row.JoinDate,
			Method:      models.DefaultPaymentMode,
			Notes:       fmt.Sprintf("Imported with student %s", student.Code),
		}
		if err := s.payments.InsertReferralPayment(ctx, entry); err != nil {
			res, rowErr, _ := fail("referral payment write failed: " + err.Error())
			return res, rowErr, referralCreated
		}
		result.ReferralPaymentWritten = true
	}

	if referralErrMsg != "" {
		res, rowErr, _ := fail(referralErrMsg)
		return res, rowErr, referralCreated
	}
	return result, nil, referralCreated
}

// ResolveReferral finds a referral by exact case-insensitive name, or
// creates one with the next REF code when no match exists.
func (s *ImportService) ResolveReferral(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}

	existing, err := s.referrals.FindByName(ctx, name)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	referral := &models.Referral{
		Code:     s.allocator.NextReferralCode(ctx),
		FullName: name,
		Notes:    "Auto-created during enrollment import",
	}
	if err := s.referrals.Create(ctx, referral); err != nil {
		return "", false, err
	}
	s.logger.Info("referral auto-created", zap.String("code", referral.Code), zap.String("name", name))
	return referral.ID, true, nil
}

// ledgerEntries builds one entry per non-zero stage amount on the row.
func (s *ImportService) ledgerEntries(studentID string, row models.EnrollmentRow) []models.PaymentLedgerEntry {
	var entries []models.PaymentLedgerEntry
	for _, sp := range row.StagePayments() {
		if sp.Payment.Amount <= 0 {
			continue
		}
		date := row.JoinDate
		if sp.Payment.Date != nil {
			date = sp.Payment.Date
		}
		entries = append(entries, models.PaymentLedgerEntry{
			ID:          uuid.NewString(),
			StudentID:   studentID,
			Stage:       sp.Stage,
			Amount:      sp.Payment.Amount,
			PaymentMode: models.NormalizePaymentMode(sp.Payment.Mode),
			PaymentDate: *date,
		})
	}
	return entries
}

func (s *ImportService) rowTimeout() time.Duration {
	if s.cfg.RowTimeout > 0 {
		return s.cfg.RowTimeout
	}
	return 10 * time.Second
}
