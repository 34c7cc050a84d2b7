package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "full_name", "email", "phone", "address", "country", "passport_id",
		"course_id", "batch_id", "join_date", "class_start_date", "status", "total_course_fee", "advance_payment",
		"referral_id", "notes", "created_at", "updated_at", "course_title", "referral_name", "referral_code"}).
		AddRow("1", "ATZ-2025-001", "Aisha Khan", "aisha@example.com", "555-0101", "12 Main St", "PK", "AB123",
			nil, nil, now, nil, "Enrolled", 1000.0, 500.0, nil, "", now, now, nil, nil, nil)
	mock.ExpectQuery("SELECT s.id, s.code, s.full_name").WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM students WHERE LOWER\\(email\\)").
		WithArgs("aisha@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "aisha@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM students WHERE LOWER\\(email\\)").
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListCodesByPrefix(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT code FROM students WHERE code LIKE").
		WithArgs("ATZ-2025-%").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("ATZ-2025-001").AddRow("ATZ-2025-002"))

	codes, err := repo.ListCodesByPrefix(context.Background(), "ATZ-2025-")
	require.NoError(t, err)
	assert.Equal(t, []string{"ATZ-2025-001", "ATZ-2025-002"}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Code: "ATZ-2025-003", FullName: "Ben Osei", Email: "ben@example.com", JoinDate: time.Now(), Status: models.StudentStatusAttendSessions}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_email_key"})

	err := repo.Create(context.Background(), &models.Student{Code: "ATZ-2025-004", Email: "dup@example.com", JoinDate: time.Now()})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
