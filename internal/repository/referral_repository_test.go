package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
)

func TestReferralRepositoryFindByNameHit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "full_name", "email", "phone", "address", "bank_name", "bank_account", "notes", "created_at", "updated_at"}).
		AddRow("r1", "REF-001", "Omar Farouk", "", "", "", "", "", "", now, now)
	mock.ExpectQuery("SELECT id, code, full_name, email, phone, address, bank_name, bank_account, notes").
		WithArgs("Omar Farouk").
		WillReturnRows(rows)

	referral, err := repo.FindByName(context.Background(), "  Omar Farouk ")
	require.NoError(t, err)
	require.NotNil(t, referral)
	assert.Equal(t, "REF-001", referral.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralRepositoryFindByNameMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectQuery("SELECT id, code, full_name, email, phone, address, bank_name, bank_account, notes").
		WithArgs("Nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	referral, err := repo.FindByName(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Nil(t, referral)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectExec("INSERT INTO referrals").WillReturnResult(sqlmock.NewResult(1, 1))

	referral := &models.Referral{Code: "REF-002", FullName: "Lina Gomez"}
	err := repo.Create(context.Background(), referral)
	require.NoError(t, err)
	assert.NotEmpty(t, referral.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
