package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s SessionPostgreSQL) GetOpen(ctx context.Context, userID string, courseID uint, lessonID string) (*models.LearningSession, error) {
	var session models.LearningSession
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ? AND ended_at IS NULL", userID, courseID, lessonID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// GetOrCreateOpen returns the open session for the triple, creating one when
// none exists. The partial unique index on (user_id, course_id, lesson_id)
// WHERE ended_at IS NULL makes the create race safe: the loser re-reads the
// winner's row.
func (s SessionPostgreSQL) GetOrCreateOpen(ctx context.Context, userID string, courseID uint, lessonID string, startedAt time.Time) (*models.LearningSession, bool, error) {
	session, err := s.GetOpen(ctx, userID, courseID, lessonID)
	if err != nil {
		return nil, false, err
	}
	if session != nil {
		return session, false, nil
	}

	fresh := &models.LearningSession{
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		StartedAt: startedAt,
	}
	if err := s.db.WithContext(ctx).Create(fresh).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, gerr := s.GetOpen(ctx, userID, courseID, lessonID)
			if gerr != nil {
				return nil, false, gerr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	return fresh, true, nil
}

func (s SessionPostgreSQL) AddInteraction(ctx context.Context, interaction *models.Interaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(interaction).Error; err != nil {
			return err
		}
		// Touch the parent so the idle reaper sees recent activity.
		return tx.Model(&models.LearningSession{}).
			Where("id = ?", interaction.SessionID).
			UpdateColumn("updated_at", time.Now()).Error
	})
}

func (s SessionPostgreSQL) UpdateVideoProgress(ctx context.Context, id uint, percent float64) error {
	return s.db.WithContext(ctx).
		Model(&models.LearningSession{}).
		Where("id = ?", id).
		Update("video_progress_percent", percent).Error
}

// Close stamps the end of a session. Closing an already closed session is a
// no-op, so concurrent end-of-session events and the reaper cannot overwrite
// each other's timestamps.
func (s SessionPostgreSQL) Close(ctx context.Context, id uint, endedAt time.Time, durationSeconds int) error {
	return s.db.WithContext(ctx).
		Model(&models.LearningSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]interface{}{
			"ended_at":         endedAt,
			"duration_seconds": durationSeconds,
		}).Error
}

func (s SessionPostgreSQL) ListInWindow(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.LearningSession, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	query = s.applyFilters(query, filters)

	var rows []*models.LearningSession
	if err := query.
		Order("started_at ASC").
		Preload("Interactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("interactions.occurred_at ASC, interactions.id ASC")
		}).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (s SessionPostgreSQL) ListIdleOpen(ctx context.Context, idleSince time.Time, limit int) ([]*models.LearningSession, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []*models.LearningSession
	if err := s.db.WithContext(ctx).
		Where("ended_at IS NULL AND updated_at < ?", idleSince).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (s SessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.LessonID != nil {
		query = query.Where("lesson_id = ?", *filters.LessonID)
	}
	if filters.From != nil {
		query = query.Where("started_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("started_at < ?", *filters.To)
	}
	if filters.OpenOnly {
		query = query.Where("ended_at IS NULL")
	}
	return query
}
