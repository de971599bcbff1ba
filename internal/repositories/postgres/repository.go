package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the Postgres-backed facade over the per-entity repositories.
type Repository struct {
	db *gorm.DB

	progress    repositories.ProgressRepository
	session     repositories.SessionRepository
	achievement repositories.AchievementRepository
	course      repositories.CourseRepository
	report      repositories.ReportRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		db:          db,
		progress:    NewProgressPostgreSQL(db),
		session:     NewSessionPostgreSQL(db),
		achievement: NewAchievementPostgreSQL(db),
		course:      NewCoursePostgreSQL(db),
		report:      NewReportPostgreSQL(db),
	}
}

func (r *Repository) Progress() repositories.ProgressRepository {
	return r.progress
}

func (r *Repository) Session() repositories.SessionRepository {
	return r.session
}

func (r *Repository) Achievement() repositories.AchievementRepository {
	return r.achievement
}

func (r *Repository) Course() repositories.CourseRepository {
	return r.course
}

func (r *Repository) Report() repositories.ReportRepository {
	return r.report
}

// Migrate creates the schema plus the partial unique indexes gorm tags cannot
// express. Safe to run on every startup.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Course{},
		&models.CourseProgress{},
		&models.CompletedLesson{},
		&models.Note{},
		&models.Bookmark{},
		&models.WeeklyStat{},
		&models.Achievement{},
		&models.LearningSession{},
		&models.Interaction{},
		&models.ReportJob{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	statements := []string{
		// At most one open session per (user, course, lesson) triple.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open_triple
		 ON learning_sessions (user_id, course_id, lesson_id) WHERE ended_at IS NULL`,
		// Global achievements: one per (user, type).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_achievements_global
		 ON achievements (user_id, type) WHERE course_id IS NULL`,
		// Course-scoped achievements: one per (user, type, course).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_achievements_course
		 ON achievements (user_id, type, course_id) WHERE course_id IS NOT NULL`,
	}
	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}
