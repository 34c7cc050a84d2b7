package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context) ([]models.Course, error)
}

// CourseService exposes the course catalog.
type CourseService struct {
	repo   courseRepository
	logger *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, logger: logger}
}

// List returns all active courses.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}
