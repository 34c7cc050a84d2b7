package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/repository"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type breakdownInvalidator interface {
	Invalidate(ctx context.Context)
}

// CreateStudentRequest holds payload for manual student entry.
type CreateStudentRequest struct {
	FullName       string     `json:"full_name" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	Phone          string     `json:"phone" validate:"required"`
	Address        string     `json:"address"`
	Country        string     `json:"country"`
	PassportID     string     `json:"passport_id"`
	CourseID       *string    `json:"course_id"`
	BatchID        *string    `json:"batch_id"`
	JoinDate       time.Time  `json:"join_date" validate:"required"`
	ClassStartDate *time.Time `json:"class_start_date"`
	Status         string     `json:"status"`
	TotalCourseFee float64    `json:"total_course_fee" validate:"gte=0"`
	Notes          string     `json:"notes"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	FullName       string     `json:"full_name" validate:"required"`
	Phone          string     `json:"phone" validate:"required"`
	Address        string     `json:"address"`
	Country        string     `json:"country"`
	PassportID     string     `json:"passport_id"`
	CourseID       *string    `json:"course_id"`
	BatchID        *string    `json:"batch_id"`
	ClassStartDate *time.Time `json:"class_start_date"`
	Status         string     `json:"status"`
	TotalCourseFee float64    `json:"total_course_fee" validate:"gte=0"`
	Notes          string     `json:"notes"`
}

// StudentService handles student use-cases outside the bulk import.
type StudentService struct {
	repo        studentRepository
	allocator   *CodeAllocator
	invalidator breakdownInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, allocator *CodeAllocator, invalidator breakdownInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, allocator: allocator, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a single student outside the bulk import flow. The
// same code allocator and duplicate rules apply.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEmail, "a student with this email already exists")
	}

	status, ok := models.ParseStudentStatus(req.Status)
	if !ok {
		if req.Status != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+req.Status)
		}
		status = models.DefaultStudentStatus
	}

	student := &models.Student{
		Code:           s.allocator.NextStudentCode(ctx),
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		Country:        req.Country,
		PassportID:     req.PassportID,
		CourseID:       req.CourseID,
		BatchID:        req.BatchID,
		JoinDate:       req.JoinDate,
		ClassStartDate: req.ClassStartDate,
		Status:         status,
		TotalCourseFee: req.TotalCourseFee,
		Notes:          req.Notes,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if repository.IsDuplicate(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEmail, "a student with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	s.logger.Info("student created", zap.String("code", student.Code))
	return student, nil
}

// Update modifies a student's mutable fields. Email and code are
// immutable once assigned.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	status := detail.Status
	if req.Status != "" {
		parsed, ok := models.ParseStudentStatus(req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+req.Status)
		}
		status = parsed
	}

	student := detail.Student
	student.FullName = req.FullName
	student.Phone = req.Phone
	student.Address = req.Address
	student.Country = req.Country
	student.PassportID = req.PassportID
	student.CourseID = req.CourseID
	student.BatchID = req.BatchID
	student.ClassStartDate = req.ClassStartDate
	student.Status = status
	student.TotalCourseFee = req.TotalCourseFee
	student.Notes = req.Notes

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	return &student, nil
}
