package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atz-edu/enroll-api/internal/models"
)

// ReferralRepository manages persistence for referring agents.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs a ReferralRepository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// List returns referrals matching the filter.
func (r *ReferralRepository) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, int, error) {
	base := "FROM referrals"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, code, full_name, email, phone, address, bank_name, bank_account, notes, created_at, updated_at
        %s ORDER BY code ASC LIMIT %d OFFSET %d`, base, size, offset)

	var referrals []models.Referral
	if err := r.db.SelectContext(ctx, &referrals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list referrals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count referrals: %w", err)
	}
	return referrals, total, nil
}

// FindByID fetches a referral by ID.
func (r *ReferralRepository) FindByID(ctx context.Context, id string) (*models.Referral, error) {
	const query = `SELECT id, code, full_name, email, phone, address, bank_name, bank_account, notes, created_at, updated_at
        FROM referrals WHERE id = $1`
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, id); err != nil {
		return nil, err
	}
	return &referral, nil
}

// FindByName looks up a referral by case-insensitive exact name match.
// Returns nil (no error) when there is no match.
func (r *ReferralRepository) FindByName(ctx context.Context, name string) (*models.Referral, error) {
	const query = `SELECT id, code, full_name, email, phone, address, bank_name, bank_account, notes, created_at, updated_at
        FROM referrals WHERE LOWER(full_name) = LOWER($1) LIMIT 1`
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find referral by name: %w", err)
	}
	return &referral, nil
}

// ListCodesByPrefix returns every referral code starting with the prefix.
func (r *ReferralRepository) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	const query = "SELECT code FROM referrals WHERE code LIKE $1"
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, prefix+"%"); err != nil {
		return nil, fmt.Errorf("list referral codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new referral record.
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = now
	}
	referral.UpdatedAt = now
	const query = `INSERT INTO referrals (id, code, full_name, email, phone, address, bank_name, bank_account, notes, created_at, updated_at)
        VALUES (:id, :code, :full_name, :email, :phone, :address, :bank_name, :bank_account, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, referral); err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("create referral: %w", ErrDuplicate)
		}
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}
