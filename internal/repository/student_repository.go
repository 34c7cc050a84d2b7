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
	"github.com/lib/pq"

	"github.com/atz-edu/enroll-api/internal/models"
)

// ErrDuplicate marks an insert rejected by a uniqueness constraint. The
// import pipeline treats it as "row skipped" rather than a failure.
var ErrDuplicate = errors.New("duplicate record")

// IsDuplicate reports whether err stems from a uniqueness violation.
func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN courses c ON c.id = s.course_id LEFT JOIN referrals rf ON rf.id = s.referral_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("s.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.email) LIKE $%d OR LOWER(s.code) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "s.full_name",
		"code":       "s.code",
		"join_date":  "s.join_date",
		"created_at": "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.code, s.full_name, s.email, s.phone, s.address, s.country, s.passport_id,
        s.course_id, s.batch_id, s.join_date, s.class_start_date, s.status, s.total_course_fee, s.advance_payment,
        s.referral_id, s.notes, s.created_at, s.updated_at,
        c.title AS course_title, rf.full_name AS referral_name, rf.code AS referral_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT s.id, s.code, s.full_name, s.email, s.phone, s.address, s.country, s.passport_id,
        s.course_id, s.batch_id, s.join_date, s.class_start_date, s.status, s.total_course_fee, s.advance_payment,
        s.referral_id, s.notes, s.created_at, s.updated_at,
        c.title AS course_title, rf.full_name AS referral_name, rf.code AS referral_code
        FROM students s
        LEFT JOIN courses c ON c.id = s.course_id
        LEFT JOIN referrals rf ON rf.id = s.referral_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListForBreakdown loads students for the reconciliation read path.
// Unlike List it is unpaginated: the breakdown aggregates the full set.
func (r *StudentRepository) ListForBreakdown(ctx context.Context, status models.StudentStatus, studentID string) ([]models.StudentDetail, error) {
	base := `SELECT s.id, s.code, s.full_name, s.email, s.phone, s.address, s.country, s.passport_id,
        s.course_id, s.batch_id, s.join_date, s.class_start_date, s.status, s.total_course_fee, s.advance_payment,
        s.referral_id, s.notes, s.created_at, s.updated_at,
        c.title AS course_title, rf.full_name AS referral_name, rf.code AS referral_code
        FROM students s
        LEFT JOIN courses c ON c.id = s.course_id
        LEFT JOIN referrals rf ON rf.id = s.referral_id`
	args := []interface{}{}
	conditions := []string{"1=1"}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, status)
	}
	if studentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.id = $%d", len(args)+1))
		args = append(args, studentID)
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY s.code ASC", base, strings.Join(conditions, " AND "))

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students for breakdown: %w", err)
	}
	return students, nil
}

// ExistsByEmail checks whether a student with the given email is already stored.
// The match is case-insensitive since emails arrive in operator-typed form.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = "SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// ListCodesByPrefix returns every student code starting with the prefix,
// used by the sequential allocator to find the current maximum suffix.
func (r *StudentRepository) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	const query = "SELECT code FROM students WHERE code LIKE $1"
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, prefix+"%"); err != nil {
		return nil, fmt.Errorf("list student codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new student record. A uniqueness violation on email
// or code is reported as ErrDuplicate so callers can distinguish a race
// against another writer from a genuine storage failure.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, code, full_name, email, phone, address, country, passport_id,
        course_id, batch_id, join_date, class_start_date, status, total_course_fee, advance_payment,
        referral_id, notes, created_at, updated_at)
        VALUES (:id, :code, :full_name, :email, :phone, :address, :country, :passport_id,
        :course_id, :batch_id, :join_date, :class_start_date, :status, :total_course_fee, :advance_payment,
        :referral_id, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("create student: %w", ErrDuplicate)
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, email = :email, phone = :phone, address = :address,
        country = :country, passport_id = :passport_id, course_id = :course_id, batch_id = :batch_id,
        join_date = :join_date, class_start_date = :class_start_date, status = :status,
        total_course_fee = :total_course_fee, advance_payment = :advance_payment,
        referral_id = :referral_id, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("update student: %w", ErrDuplicate)
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateAdvancePayment refreshes the denormalized advance amount after
// a payment is recorded.
func (r *StudentRepository) UpdateAdvancePayment(ctx context.Context, id string, amount float64) error {
	const query = `UPDATE students SET advance_payment = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("update advance payment: %w", err)
	}
	return nil
}
