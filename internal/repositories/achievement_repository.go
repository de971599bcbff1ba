package repositories

import (
	"context"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
)

// AchievementRepository persists granted badges. Uniqueness per (user, type)
// respectively (user, type, course) is enforced by partial unique indexes;
// Create surfaces gorm.ErrDuplicatedKey so callers can treat a concurrent
// double-grant as already granted.
type AchievementRepository interface {
	Create(ctx context.Context, achievement *models.Achievement) error
	GetByUser(ctx context.Context, userID string) ([]*models.Achievement, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}
