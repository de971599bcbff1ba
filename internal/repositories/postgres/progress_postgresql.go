package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type ProgressPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (p ProgressPostgreSQL) GetByID(ctx context.Context, id uint) (*models.CourseProgress, error) {
	var progress models.CourseProgress
	if err := p.db.WithContext(ctx).First(&progress, id).Error; err != nil {
		return nil, err
	}

	return &progress, nil
}

func (p ProgressPostgreSQL) GetByUserAndCourse(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	var progress models.CourseProgress
	if err := p.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Preload("CompletedLessons").
		Preload("WeeklyStats").
		First(&progress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &progress, nil
}

func (p ProgressPostgreSQL) GetOrCreate(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	progress, err := p.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil || progress != nil {
		return progress, err
	}

	fresh := &models.CourseProgress{
		UserID:         userID,
		CourseID:       courseID,
		StudyGoal:      models.DefaultStudyGoal(),
		LastAccessedAt: time.Now(),
		Version:        1,
	}
	if err := p.db.WithContext(ctx).Create(fresh).Error; err != nil {
		// Concurrent first call for the pair; the unique index on
		// (user_id, course_id) collapses both onto one row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return p.GetByUserAndCourse(ctx, userID, courseID)
		}
		return nil, err
	}

	return fresh, nil
}

func (p ProgressPostgreSQL) GetWithDetails(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	var progress models.CourseProgress
	if err := p.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Preload("CompletedLessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("completed_lessons.completed_at ASC")
		}).
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("notes.id ASC")
		}).
		Preload("Bookmarks", func(db *gorm.DB) *gorm.DB {
			return db.Order("bookmarks.id ASC")
		}).
		Preload("WeeklyStats", func(db *gorm.DB) *gorm.DB {
			return db.Order("weekly_stats.week_start ASC")
		}).
		First(&progress).Error; err != nil {
		return nil, err
	}

	return &progress, nil
}

func (p ProgressPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.ProgressFilters) ([]*models.CourseProgress, int64, error) {
	var rows []*models.CourseProgress
	var total int64

	query := p.db.WithContext(ctx).Model(&models.CourseProgress{}).Where("user_id = ?", userID)
	query = p.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = p.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// Save applies the tracker outcome: a version-checked update of the parent row
// plus the child inserts/updates the transition produced, all in one
// transaction. A version miss means another request won the race; the caller
// reloads and retries.
func (p ProgressPostgreSQL) Save(ctx context.Context, progress *models.CourseProgress, change repositories.ProgressChange) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The cursor columns are not written here. UpdateCursor owns them and
		// overwrites without a version check, so writing them back from a
		// possibly stale in-memory row would undo a concurrent position
		// update.
		res := tx.Model(&models.CourseProgress{}).
			Where("id = ? AND version = ?", progress.ID, progress.Version).
			Updates(map[string]interface{}{
				"overall_progress":         progress.OverallProgress,
				"total_watch_time_seconds": progress.TotalWatchTimeSeconds,
				"streak_days":              progress.StreakDays,
				"last_streak_date":         progress.LastStreakDate,
				"completed_at":             progress.CompletedAt,
				"last_accessed_at":         progress.LastAccessedAt,
				"version":                  gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repositories.ErrVersionConflict
		}

		for _, lesson := range change.NewLessons {
			lesson.ProgressID = progress.ID
			if err := tx.Create(lesson).Error; err != nil {
				return err
			}
		}
		for _, lesson := range change.UpdatedLessons {
			if err := tx.Model(&models.CompletedLesson{}).
				Where("id = ?", lesson.ID).
				Updates(map[string]interface{}{
					"quiz_score":    lesson.QuizScore,
					"quiz_attempts": lesson.QuizAttempts,
				}).Error; err != nil {
				return err
			}
		}
		for _, stat := range change.NewWeeklyStats {
			stat.ProgressID = progress.ID
			if err := tx.Create(stat).Error; err != nil {
				return err
			}
		}
		for _, stat := range change.UpdatedWeeklyStats {
			if err := tx.Model(&models.WeeklyStat{}).
				Where("id = ?", stat.ID).
				Updates(map[string]interface{}{
					"minutes_studied":   stat.MinutesStudied,
					"lessons_completed": stat.LessonsCompleted,
					"goal_achieved":     stat.GoalAchieved,
				}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	progress.Version++
	return nil
}

func (p ProgressPostgreSQL) UpdateCursor(ctx context.Context, id uint, lessonID, sectionID string, positionSeconds int, accessedAt time.Time) error {
	return p.db.WithContext(ctx).
		Model(&models.CourseProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_lesson_id":        lessonID,
			"current_section_id":       sectionID,
			"current_position_seconds": positionSeconds,
			"last_accessed_at":         accessedAt,
		}).Error
}

func (p ProgressPostgreSQL) UpdateStudyGoal(ctx context.Context, id uint, goal models.StudyGoal) error {
	return p.db.WithContext(ctx).
		Model(&models.CourseProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"goal_daily_minutes":  goal.DailyMinutes,
			"goal_weekly_minutes": goal.WeeklyMinutes,
		}).Error
}

func (p ProgressPostgreSQL) AddNote(ctx context.Context, note *models.Note) error {
	return p.db.WithContext(ctx).Create(note).Error
}

func (p ProgressPostgreSQL) AddBookmark(ctx context.Context, bookmark *models.Bookmark) error {
	return p.db.WithContext(ctx).Create(bookmark).Error
}

func (p ProgressPostgreSQL) GetLearnerStats(ctx context.Context, userID string) (*repositories.LearnerStats, error) {
	var stats repositories.LearnerStats

	err := p.db.WithContext(ctx).
		Model(&models.CourseProgress{}).
		Select(`COUNT(*) as courses_tracked,
			COUNT(completed_at) as courses_completed,
			COALESCE(SUM(total_watch_time_seconds), 0) as total_watch_time_seconds,
			COALESCE(MAX(streak_days), 0) as best_current_streak`).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	var lessons int64
	err = p.db.WithContext(ctx).
		Model(&models.CompletedLesson{}).
		Joins("JOIN course_progress ON course_progress.id = completed_lessons.progress_id").
		Where("course_progress.user_id = ?", userID).
		Count(&lessons).Error
	if err != nil {
		return nil, err
	}
	stats.LessonsCompleted = int(lessons)

	return &stats, nil
}

func (p ProgressPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ProgressFilters) *gorm.DB {
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.Completed != nil {
		if *filters.Completed {
			query = query.Where("completed_at IS NOT NULL")
		} else {
			query = query.Where("completed_at IS NULL")
		}
	}
	return query
}
