package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"gorm.io/datatypes"
)

// ReportRepository persists asynchronous export jobs. Complete and Fail only
// transition rows still in the processing state, so a detached worker writes
// its outcome exactly once even if it races a retry.
type ReportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByUser(ctx context.Context, userID string, filters ReportJobFilters) ([]*models.ReportJob, int64, error)

	// MarkProcessing claims a pending job; false means another worker got it.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)
	Complete(ctx context.Context, id string, result datatypes.JSON, filePath string, completedAt time.Time) error
	Fail(ctx context.Context, id string, message string, completedAt time.Time) error
}
