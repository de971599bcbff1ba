package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
)

// ProgressRepository persists per-(learner, course) advancement records.
//
// Mutations come in two flavors matching how the tracker reasons about them:
// read-modify-write transitions (lesson completion) go through the
// version-checked Save, while unconditional single-field overwrites (playback
// cursor, study goal) and append-only children (notes, bookmarks) are atomic
// updates that need no version bump.
type ProgressRepository interface {
	// Lookup
	GetByID(ctx context.Context, id uint) (*models.CourseProgress, error)
	GetByUserAndCourse(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) // nil, nil when absent
	GetOrCreate(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error)        // atomic find-or-create; lessons and weekly stats preloaded
	GetWithDetails(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error)     // all children preloaded
	ListByUser(ctx context.Context, userID string, filters ProgressFilters) ([]*models.CourseProgress, int64, error)

	// Version-checked mutation; returns ErrVersionConflict when the row moved
	// under the caller. Bumps progress.Version in memory on success.
	Save(ctx context.Context, progress *models.CourseProgress, change ProgressChange) error

	// Unconditional field-level updates
	UpdateCursor(ctx context.Context, id uint, lessonID, sectionID string, positionSeconds int, accessedAt time.Time) error
	UpdateStudyGoal(ctx context.Context, id uint, goal models.StudyGoal) error

	// Append-only children
	AddNote(ctx context.Context, note *models.Note) error
	AddBookmark(ctx context.Context, bookmark *models.Bookmark) error

	// Aggregates
	GetLearnerStats(ctx context.Context, userID string) (*LearnerStats, error)
}
