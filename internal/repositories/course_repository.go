package repositories

import (
	"context"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
)

// CourseRepository reads the catalog replica. Only TotalLessons is
// load-bearing for progress math; an unknown course yields 0 lessons, which
// keeps overall progress at 0 instead of erroring.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	TotalLessons(ctx context.Context, courseID uint) (int, error)
}
