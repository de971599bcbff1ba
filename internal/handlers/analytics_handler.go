package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/learning-progress-service/internal/services"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
	validator        *utils.Validator
}

func NewAnalyticsHandler(
	analyticsService services.AnalyticsService,
	validator *utils.Validator,
	logger utils.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
		validator:        validator,
	}
}

// TrackInteraction ingests one telemetry event
// @Summary Track interaction
// @Description Appends an interaction to the learner's open session, opening one when needed
// @Tags analytics
// @Accept json
// @Produce json
// @Param interaction body services.TrackInteractionRequest true "Interaction data"
// @Success 200 {object} services.TrackResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/track [post]
func (h *AnalyticsHandler) TrackInteraction(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.TrackInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.analyticsService.TrackInteraction(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMetrics computes performance metrics over a lookback window
// @Summary Get performance metrics
// @Description Computes engagement, completion rate, learning patterns and topic performance
// @Tags analytics
// @Accept json
// @Produce json
// @Param course_id query uint false "Restrict to one course"
// @Param timeframe query string false "Lookback window: 7d, 30d or 90d (default 7d)"
// @Success 200 {object} services.PerformanceMetrics
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/metrics [get]
func (h *AnalyticsHandler) GetMetrics(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	courseID, ok := ParseOptionalUintQuery(c, "course_id")
	if !ok {
		return
	}

	metrics, err := h.analyticsService.GetPerformanceMetrics(c.Request.Context(), userID, courseID, c.Query("timeframe"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

func (h *AnalyticsHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationError,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Learning session not found",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
