package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// exportTimeout bounds one detached export run end to end.
const exportTimeout = 2 * time.Minute

// ReportService assembles learner reports and manages asynchronous exports.
type ReportService interface {
	// AssembleReport builds the metrics-plus-insights report synchronously.
	AssembleReport(ctx context.Context, userID string, courseID *uint, timeframe string) (*LearningReport, error)

	// RequestExport creates a pending export job and returns immediately; a
	// detached worker renders the artifact and resolves the job exactly once
	// (completed, or terminal failed; never stuck in processing).
	RequestExport(ctx context.Context, userID string, req *ExportRequest) (*models.ReportJob, error)

	GetExport(ctx context.Context, userID string, jobID string) (*models.ReportJob, error)
	ListExports(ctx context.Context, userID string, filters repositories.ReportJobFilters) (*ExportListResult, error)

	// CompletedExport returns the job only once its artifact is ready;
	// ErrReportNotReady otherwise.
	CompletedExport(ctx context.Context, userID string, jobID string) (*models.ReportJob, error)
}

type reportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	opLog     *ServiceLogger
	validator *utils.Validator
	analytics AnalyticsService
	insights  InsightGenerator
	clock     utils.Clock
	exportDir string
}

func NewReportService(repo repositories.Repository, logger *slog.Logger, validator *utils.Validator, analytics AnalyticsService, insights InsightGenerator, clock utils.Clock, exportDir string) ReportService {
	return &reportService{
		repo:      repo,
		logger:    logger,
		opLog:     NewServiceLogger(logger, "reports"),
		validator: validator,
		analytics: analytics,
		insights:  insights,
		clock:     clock,
		exportDir: exportDir,
	}
}

// ===== DATA STRUCTURES =====

type LearningReport struct {
	UserID      string              `json:"user_id"`
	CourseID    *uint               `json:"course_id,omitempty"`
	Timeframe   string              `json:"timeframe"`
	Metrics     *PerformanceMetrics `json:"metrics"`
	Insights    *LearningInsights   `json:"insights"`
	GeneratedAt time.Time           `json:"generated_at"`
}

type ExportRequest struct {
	CourseID  *uint  `json:"course_id"`
	Timeframe string `json:"timeframe" validate:"omitempty,timeframe"`
	Format    string `json:"format" validate:"required,oneof=xlsx csv json"`
}

type ExportListResult struct {
	Jobs  []*models.ReportJob `json:"jobs"`
	Total int64               `json:"total"`
}

// ===== REPORT ASSEMBLY =====

func (s *reportService) AssembleReport(ctx context.Context, userID string, courseID *uint, timeframe string) (*LearningReport, error) {
	metrics, err := s.analytics.GetPerformanceMetrics(ctx, userID, courseID, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}

	return &LearningReport{
		UserID:      userID,
		CourseID:    courseID,
		Timeframe:   metrics.Timeframe,
		Metrics:     metrics,
		Insights:    s.generateInsights(ctx, metrics),
		GeneratedAt: s.clock.Now(),
	}, nil
}

// generateInsights asks the configured generator and substitutes the
// deterministic fallback when the generator is absent or fails.
func (s *reportService) generateInsights(ctx context.Context, metrics *PerformanceMetrics) *LearningInsights {
	if s.insights == nil {
		return FallbackInsights(metrics)
	}

	generated, err := s.insights.GenerateInsights(ctx, metrics)
	if err != nil || generated == nil {
		if errors.Is(err, ErrInsightsUnavailable) {
			s.logger.Info("Insight generator unavailable; using fallback")
		} else {
			s.logger.Warn("Insight generator failed; using fallback", "error", err)
		}
		return FallbackInsights(metrics)
	}

	return generated
}

// ===== EXPORT JOBS =====

func (s *reportService) RequestExport(ctx context.Context, userID string, req *ExportRequest) (job *models.ReportJob, err error) {
	op := s.opLog.WithOperation(ctx, "request_export", userID)
	defer func() { op.LogResult(0, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	_, label := parseTimeframe(req.Timeframe)
	job = &models.ReportJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  req.CourseID,
		Timeframe: label,
		Format:    models.ReportFormat(req.Format),
		Status:    models.ReportPending,
	}
	if err = s.repo.Report().Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create report job: %w", err)
	}

	// Detached on purpose: the HTTP request finishing (or failing) must not
	// cancel the render.
	go s.runExport(job.ID)

	return job, nil
}

func (s *reportService) GetExport(ctx context.Context, userID string, jobID string) (*models.ReportJob, error) {
	job, err := s.repo.Report().GetByID(ctx, jobID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrReportJobNotFound
		}
		return nil, fmt.Errorf("failed to load report job: %w", err)
	}

	if job.UserID != userID {
		return nil, NewPermissionError(userID, jobID, "report_job", "view", "job belongs to another learner")
	}

	return job, nil
}

func (s *reportService) ListExports(ctx context.Context, userID string, filters repositories.ReportJobFilters) (*ExportListResult, error) {
	jobs, total, err := s.repo.Report().ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list report jobs: %w", err)
	}

	return &ExportListResult{Jobs: jobs, Total: total}, nil
}

func (s *reportService) CompletedExport(ctx context.Context, userID string, jobID string) (*models.ReportJob, error) {
	job, err := s.GetExport(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.ReportCompleted || job.FilePath == "" {
		return nil, ErrReportNotReady
	}

	return job, nil
}

// ===== DETACHED EXPORT WORKER =====

// runExport renders one export job with its own context and writes the
// outcome exactly once. A recovered panic becomes a terminal failed status,
// never a row stuck in processing.
func (s *reportService) runExport(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Report export panicked", "job_id", jobID, "panic", r)
			s.failJob(ctx, jobID, fmt.Sprintf("export panicked: %v", r))
		}
	}()

	claimed, err := s.repo.Report().MarkProcessing(ctx, jobID, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to claim report job", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		// Another worker owns it.
		return
	}

	job, err := s.repo.Report().GetByID(ctx, jobID)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to reload job: %v", err))
		return
	}

	report, err := s.AssembleReport(ctx, job.UserID, job.CourseID, job.Timeframe)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to assemble report: %v", err))
		return
	}

	filePath, err := s.renderArtifact(job, report)
	if err != nil {
		s.failJob(ctx, jobID, err.Error())
		return
	}

	resultJSON, err := json.Marshal(report)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to encode report: %v", err))
		return
	}

	if err := s.repo.Report().Complete(ctx, jobID, datatypes.JSON(resultJSON), filePath, s.clock.Now()); err != nil {
		s.logger.Error("Failed to mark report job completed", "job_id", jobID, "error", err)
		return
	}

	s.logger.Info("Report export completed", "job_id", jobID, "file_path", filePath)
}

func (s *reportService) failJob(ctx context.Context, jobID, message string) {
	if err := s.repo.Report().Fail(ctx, jobID, message, s.clock.Now()); err != nil {
		s.logger.Error("Failed to mark report job failed",
			"job_id", jobID,
			"reason", message,
			"error", err)
	}
}

// ===== ARTIFACT RENDERING =====

func (s *reportService) renderArtifact(job *models.ReportJob, report *LearningReport) (string, error) {
	var data []byte
	var err error

	switch job.Format {
	case models.ReportFormatXLSX:
		data, err = renderReportXLSX(report)
	case models.ReportFormatCSV:
		data, err = renderReportCSV(report)
	case models.ReportFormatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
	default:
		return "", ErrReportFormatInvalid
	}
	if err != nil {
		return "", fmt.Errorf("failed to render %s report: %w", job.Format, err)
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	filePath := filepath.Join(s.exportDir, fmt.Sprintf("learning-report-%s.%s", job.ID, job.Format))
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report artifact: %w", err)
	}

	return filePath, nil
}

func reportSummaryRows(report *LearningReport) [][]interface{} {
	course := "all courses"
	if report.CourseID != nil {
		course = fmt.Sprintf("%d", *report.CourseID)
	}

	return [][]interface{}{
		{"Learner", report.UserID},
		{"Course", course},
		{"Timeframe", report.Timeframe},
		{"Generated At", report.GeneratedAt.Format(time.RFC3339)},
		{"Engagement Score", report.Metrics.EngagementScore},
		{"Completion Rate (%)", report.Metrics.CompletionRate},
		{"Average Watch Time (min)", report.Metrics.AverageWatchTimeMinutes},
		{"Sessions", report.Metrics.SessionCount},
		{"Preferred Study Time", report.Metrics.LearningPatterns.PreferredStudyTime},
		{"Session Length", report.Metrics.LearningPatterns.SessionLength},
		{"Interaction Style", report.Metrics.LearningPatterns.InteractionStyle},
		{"Consistency", report.Metrics.LearningPatterns.Consistency},
		{"Strongest Topic", report.Metrics.TopicPerformance.Strongest},
		{"Weakest Topic", report.Metrics.TopicPerformance.Weakest},
		{"Strengths", strings.Join(report.Insights.Strengths, "; ")},
		{"Improvements", strings.Join(report.Insights.Improvements, "; ")},
		{"Recommendations", strings.Join(report.Insights.Recommendations, "; ")},
	}
}

func renderReportXLSX(report *LearningReport) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Learning Report"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, row := range reportSummaryRows(report) {
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	// Per-topic breakdown on its own sheet
	topicSheet := "Topics"
	if _, err := f.NewSheet(topicSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	headers := []string{"Lesson", "Sessions", "Avg Duration (min)", "Avg Engagement"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(topicSheet, cell, header)
	}
	for rowIndex, topic := range report.Metrics.TopicPerformance.Topics {
		values := []interface{}{topic.LessonID, topic.SessionCount, topic.AverageDurationMinutes, topic.AverageEngagement}
		for colIndex, value := range values {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(topicSheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func renderReportCSV(report *LearningReport) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	for _, row := range reportSummaryRows(report) {
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = fmt.Sprintf("%v", value)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	if err := writer.Write([]string{}); err != nil {
		return nil, fmt.Errorf("failed to write CSV row: %w", err)
	}
	if err := writer.Write([]string{"Lesson", "Sessions", "Avg Duration (min)", "Avg Engagement"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, topic := range report.Metrics.TopicPerformance.Topics {
		record := []string{
			topic.LessonID,
			fmt.Sprintf("%d", topic.SessionCount),
			fmt.Sprintf("%d", topic.AverageDurationMinutes),
			fmt.Sprintf("%d", topic.AverageEngagement),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return []byte(buf.String()), nil
}
