package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type paymentRepository interface {
	InsertLedgerEntries(ctx context.Context, entries []models.PaymentLedgerEntry) error
	ListLedgerEntries(ctx context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error)
}

type paymentStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	UpdateAdvancePayment(ctx context.Context, id string, amount float64) error
}

// RecordPaymentRequest holds payload for recording a payment stage.
type RecordPaymentRequest struct {
	Stage       string     `json:"stage" validate:"required"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	PaymentMode string     `json:"payment_mode"`
	PaymentDate *time.Time `json:"payment_date"`
}

// PaymentService records tuition payments against students.
type PaymentService struct {
	repo        paymentRepository
	students    paymentStudentStore
	invalidator breakdownInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentStore, invalidator breakdownInvalidator, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, students: students, invalidator: invalidator, validator: validate, logger: logger}
}

// Record writes one ledger entry for a student. An Advance entry also
// refreshes the student's denormalized advance_payment field.
func (s *PaymentService) Record(ctx context.Context, studentID string, req RecordPaymentRequest) (*models.PaymentLedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	stage, _ := models.ParsePaymentStage(req.Stage)
	date := time.Now().UTC()
	if req.PaymentDate != nil {
		date = *req.PaymentDate
	}

	entry := models.PaymentLedgerEntry{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		Stage:       stage,
		Amount:      req.Amount,
		PaymentMode: models.NormalizePaymentMode(req.PaymentMode),
		PaymentDate: date,
	}
	if err := s.repo.InsertLedgerEntries(ctx, []models.PaymentLedgerEntry{entry}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if stage == models.PaymentStageAdvance {
		if err := s.students.UpdateAdvancePayment(ctx, student.ID, student.AdvancePayment+req.Amount); err != nil {
			s.logger.Warn("failed to refresh advance payment", zap.String("student_id", student.ID), zap.Error(err))
		}
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	s.logger.Info("payment recorded",
		zap.String("student_id", student.ID),
		zap.String("stage", string(stage)),
		zap.Float64("amount", req.Amount))
	return &entry, nil
}

// Ledger lists ledger entries for a student, optionally filtered.
func (s *PaymentService) Ledger(ctx context.Context, studentID string, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	filter.StudentID = studentID
	entries, err := s.repo.ListLedgerEntries(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return entries, nil
}
