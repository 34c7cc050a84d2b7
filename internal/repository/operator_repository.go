package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/atz-edu/enroll-api/internal/models"
)

// OperatorRepository manages staff accounts used for authentication.
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository constructs an OperatorRepository.
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// FindByEmail fetches an operator account by email.
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	const query = `SELECT id, email, full_name, password_hash, role, active, created_at
        FROM operators WHERE LOWER(email) = LOWER($1)`
	var operator models.Operator
	if err := r.db.GetContext(ctx, &operator, query, email); err != nil {
		return nil, err
	}
	return &operator, nil
}
