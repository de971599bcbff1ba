package postgres

import (
	"context"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type AchievementPostgreSQL struct {
	db *gorm.DB
}

func NewAchievementPostgreSQL(db *gorm.DB) repositories.AchievementRepository {
	return &AchievementPostgreSQL{db: db}
}

// Create surfaces gorm.ErrDuplicatedKey unchanged so the caller can treat a
// concurrently granted achievement as already earned.
func (a AchievementPostgreSQL) Create(ctx context.Context, achievement *models.Achievement) error {
	return a.db.WithContext(ctx).Create(achievement).Error
}

func (a AchievementPostgreSQL) GetByUser(ctx context.Context, userID string) ([]*models.Achievement, error) {
	var rows []*models.Achievement
	if err := a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (a AchievementPostgreSQL) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
