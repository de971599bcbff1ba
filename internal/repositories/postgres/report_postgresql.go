package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReportPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewReportPostgreSQL(db *gorm.DB) repositories.ReportRepository {
	return &ReportPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r ReportPostgreSQL) Create(ctx context.Context, job *models.ReportJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r ReportPostgreSQL) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}

	return &job, nil
}

func (r ReportPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.ReportJobFilters) ([]*models.ReportJob, int64, error) {
	var rows []*models.ReportJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ReportJob{}).Where("user_id = ?", userID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// MarkProcessing moves a job from pending to processing. It returns false
// when the job was already claimed, so two workers never run the same job.
func (r ReportPostgreSQL) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReportJob{}).
		Where("id = ? AND status = ?", id, models.ReportPending).
		Updates(map[string]interface{}{
			"status":     models.ReportProcessing,
			"started_at": startedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// Complete records the result exactly once; a job that already left the
// processing state is untouched.
func (r ReportPostgreSQL) Complete(ctx context.Context, id string, result datatypes.JSON, filePath string, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReportJob{}).
		Where("id = ? AND status = ?", id, models.ReportProcessing).
		Updates(map[string]interface{}{
			"status":       models.ReportCompleted,
			"result":       result,
			"file_path":    filePath,
			"completed_at": completedAt,
		}).Error
}

// Fail marks a job as terminally failed. Failed jobs are never retried; the
// caller requests a new export instead.
func (r ReportPostgreSQL) Fail(ctx context.Context, id string, message string, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReportJob{}).
		Where("id = ? AND status IN ?", id, []models.ReportJobStatus{models.ReportPending, models.ReportProcessing}).
		Updates(map[string]interface{}{
			"status":       models.ReportFailed,
			"error":        message,
			"completed_at": completedAt,
		}).Error
}
