package postgres

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type CoursePostgreSQL struct {
	db *gorm.DB
}

func NewCoursePostgreSQL(db *gorm.DB) repositories.CourseRepository {
	return &CoursePostgreSQL{db: db}
}

func (c CoursePostgreSQL) Create(ctx context.Context, course *models.Course) error {
	return c.db.WithContext(ctx).Create(course).Error
}

func (c CoursePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	if err := c.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &course, nil
}

// TotalLessons reports the catalog's lesson count for a course, or zero when
// the course is not in the catalog. Progress percentages stay at zero in that
// case rather than failing the request.
func (c CoursePostgreSQL) TotalLessons(ctx context.Context, id uint) (int, error) {
	course, err := c.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if course == nil {
		return 0, nil
	}

	return course.TotalLessons, nil
}
