package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/services"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	BaseHandler
	reportService services.ReportService
	validator     *utils.Validator
}

func NewReportHandler(
	reportService services.ReportService,
	validator *utils.Validator,
	logger utils.Logger,
) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   NewBaseHandler(logger),
		reportService: reportService,
		validator:     validator,
	}
}

// GetReport assembles the learning report synchronously
// @Summary Get learning report
// @Description Assembles performance metrics plus insights as one JSON document
// @Tags reports
// @Accept json
// @Produce json
// @Param course_id query uint false "Restrict to one course"
// @Param timeframe query string false "Lookback window: 7d, 30d or 90d (default 7d)"
// @Success 200 {object} services.LearningReport
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/report [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	courseID, ok := ParseOptionalUintQuery(c, "course_id")
	if !ok {
		return
	}

	report, err := h.reportService.AssembleReport(c.Request.Context(), userID, courseID, c.Query("timeframe"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// RequestExport queues an asynchronous report export
// @Summary Request report export
// @Description Creates a pending export job; poll its status to retrieve the artifact path
// @Tags reports
// @Accept json
// @Produce json
// @Param export body services.ExportRequest true "Export parameters"
// @Success 202 {object} models.ReportJob
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/reports/export [post]
func (h *ReportHandler) RequestExport(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	job, err := h.reportService.RequestExport(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// ListExports lists the learner's export jobs
// @Summary List report exports
// @Description Lists export jobs newest first, optionally filtered by status
// @Tags reports
// @Accept json
// @Produce json
// @Param status query string false "Filter by status: pending, processing, completed or failed"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} services.ExportListResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/reports [get]
func (h *ReportHandler) ListExports(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var filters repositories.ReportJobFilters
	filters.Limit, filters.Offset = ParsePagination(c, 20, 100)

	if raw := c.Query("status"); raw != "" {
		status := models.ReportJobStatus(raw)
		switch status {
		case models.ReportPending, models.ReportProcessing, models.ReportCompleted, models.ReportFailed:
			filters.Status = &status
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid status",
				Details: "must be one of: pending, processing, completed, failed",
			})
			return
		}
	}

	result, err := h.reportService.ListExports(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetExport polls one export job
// @Summary Get report export
// @Description Retrieves an export job with its status, result and artifact path
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.ReportJob
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/reports/{id} [get]
func (h *ReportHandler) GetExport(c *gin.Context) {
	jobID := ParseStringIDParam(c, "id")
	if jobID == "" {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	job, err := h.reportService.GetExport(c.Request.Context(), userID, jobID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// DownloadExport streams a completed export artifact
// @Summary Download report export
// @Description Streams the rendered artifact of a completed export job
// @Tags reports
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/reports/{id}/download [get]
func (h *ReportHandler) DownloadExport(c *gin.Context) {
	jobID := ParseStringIDParam(c, "id")
	if jobID == "" {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	job, err := h.reportService.CompletedExport(c.Request.Context(), userID, jobID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.FileAttachment(job.FilePath, filepath.Base(job.FilePath))
}

func (h *ReportHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrReportJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Report job not found",
		})
	case errors.Is(err, services.ErrReportNotReady):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Report job has not completed yet",
		})
	case errors.Is(err, services.ErrReportFormatInvalid):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unsupported report format",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
