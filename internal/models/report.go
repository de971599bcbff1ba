package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReportJobStatus string

const (
	ReportPending    ReportJobStatus = "pending"
	ReportProcessing ReportJobStatus = "processing"
	ReportCompleted  ReportJobStatus = "completed"
	ReportFailed     ReportJobStatus = "failed"
)

type ReportFormat string

const (
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

// ReportJob tracks one asynchronous report export. The detached worker writes
// the outcome exactly once: completed with Result/FilePath, or terminal
// failed with Error, never left in processing.
type ReportJob struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"` // UUID
	UserID   string `json:"user_id" gorm:"not null;index;size:255"`
	CourseID *uint  `json:"course_id" gorm:"index"` // null for all-course reports

	Timeframe string       `json:"timeframe" gorm:"size:10"`
	Format    ReportFormat `json:"format" gorm:"not null;size:10"`

	Status   ReportJobStatus `json:"status" gorm:"default:pending;index"`
	FilePath string          `json:"file_path" gorm:"size:500"`

	// Assembled report payload (services.LearningReport)
	Result datatypes.JSON `json:"result" gorm:"type:jsonb"`
	Error  *string        `json:"error" gorm:"type:text"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ReportJob) TableName() string {
	return "report_jobs"
}
