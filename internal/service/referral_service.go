package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type referralRepository interface {
	List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, int, error)
	FindByID(ctx context.Context, id string) (*models.Referral, error)
	FindByName(ctx context.Context, name string) (*models.Referral, error)
	Create(ctx context.Context, referral *models.Referral) error
}

type referralPaymentLister interface {
	ListReferralPaymentsByReferral(ctx context.Context, referralID string) ([]models.ReferralPaymentEntry, error)
}

// CreateReferralRequest holds payload for registering a referral.
type CreateReferralRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
	Notes       string `json:"notes"`
}

// ReferralDetail pairs a referral with its payout history.
type ReferralDetail struct {
	models.Referral
	Payments  []models.ReferralPaymentEntry `json:"payments"`
	PaidTotal float64                       `json:"paid_total"`
}

// ReferralService handles referral partner use-cases.
type ReferralService struct {
	repo      referralRepository
	payments  referralPaymentLister
	allocator *CodeAllocator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReferralService constructs the referral service.
func NewReferralService(repo referralRepository, payments referralPaymentLister, allocator *CodeAllocator, validate *validator.Validate, logger *zap.Logger) *ReferralService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{repo: repo, payments: payments, allocator: allocator, validator: validate, logger: logger}
}

// List returns referrals and pagination metadata.
func (s *ReferralService) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, *models.Pagination, error) {
	referrals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referrals")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return referrals, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a referral with its payout history.
func (s *ReferralService) Get(ctx context.Context, id string) (*ReferralDetail, error) {
	referral, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "referral not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referral")
	}

	payments, err := s.payments.ListReferralPaymentsByReferral(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referral payments")
	}

	detail := &ReferralDetail{Referral: *referral, Payments: payments}
	for _, p := range payments {
		detail.PaidTotal += p.Amount
	}
	return detail, nil
}

// Create registers a referral partner with the next REF code.
func (s *ReferralService) Create(ctx context.Context, req CreateReferralRequest) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid referral payload")
	}

	existing, err := s.repo.FindByName(ctx, req.FullName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check referral name")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a referral with this name already exists")
	}

	referral := &models.Referral{
		Code:        s.allocator.NextReferralCode(ctx),
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		BankName:    req.BankName,
		BankAccount: req.BankAccount,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, referral); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create referral")
	}

	s.logger.Info("referral created", zap.String("code", referral.Code))
	return referral, nil
}
