package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/services"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	BaseHandler
	progressService    services.ProgressService
	achievementService services.AchievementService
	validator          *utils.Validator
}

func NewProgressHandler(
	progressService services.ProgressService,
	achievementService services.AchievementService,
	validator *utils.Validator,
	logger utils.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:        NewBaseHandler(logger),
		progressService:    progressService,
		achievementService: achievementService,
		validator:          validator,
	}
}

// CompleteLesson records a finished lesson
// @Summary Complete lesson
// @Description Marks a lesson completed, updating progress, streak and weekly stats
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param lesson_id path string true "Lesson ID"
// @Param completion body services.CompleteLessonRequest true "Completion data"
// @Success 200 {object} services.CompletionResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id}/lessons/{lesson_id}/complete [post]
func (h *ProgressHandler) CompleteLesson(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}
	lessonID := ParseStringIDParam(c, "lesson_id")
	if lessonID == "" {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.CompleteLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.progressService.CompleteLesson(c.Request.Context(), userID, courseID, lessonID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdatePosition saves the learner's resume point
// @Summary Update playback position
// @Description Saves the current lesson and position so the learner can resume later
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param position body services.UpdatePositionRequest true "Position data"
// @Success 200 {object} services.PositionResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id}/position [put]
func (h *ProgressHandler) UpdatePosition(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.progressService.UpdatePosition(c.Request.Context(), userID, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddNote appends a note to the learner's course progress
// @Summary Add note
// @Description Appends a timestamped note to a lesson
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param note body services.AddNoteRequest true "Note data"
// @Success 201 {object} models.Note
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id}/notes [post]
func (h *ProgressHandler) AddNote(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	note, err := h.progressService.AddNote(c.Request.Context(), userID, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// AddBookmark appends a bookmark to the learner's course progress
// @Summary Add bookmark
// @Description Appends a timestamped bookmark to a lesson
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param bookmark body services.AddBookmarkRequest true "Bookmark data"
// @Success 201 {object} models.Bookmark
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id}/bookmarks [post]
func (h *ProgressHandler) AddBookmark(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.AddBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	bookmark, err := h.progressService.AddBookmark(c.Request.Context(), userID, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bookmark)
}

// UpdateStudyGoal sets the learner's study goal for a course
// @Summary Update study goal
// @Description Sets daily and weekly study-minute targets for a course
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param goal body services.UpdateStudyGoalRequest true "Goal data"
// @Success 200 {object} models.StudyGoal
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id}/goal [put]
func (h *ProgressHandler) UpdateStudyGoal(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateStudyGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	goal, err := h.progressService.UpdateStudyGoal(c.Request.Context(), userID, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, goal)
}

// GetCourseProgress retrieves the full progress view for one course
// @Summary Get course progress
// @Description Retrieves progress with completed lessons, notes, bookmarks and weekly stats
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Success 200 {object} models.CourseProgress
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/courses/{course_id} [get]
func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	courseID := ParseUintParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting course progress", "course_id", courseID)

	progress, err := h.progressService.GetCourseProgress(c.Request.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetSummary retrieves the learner's progress across all courses
// @Summary Get progress summary
// @Description Retrieves aggregate learner stats and per-course progress rows
// @Tags progress
// @Accept json
// @Produce json
// @Param course_id query uint false "Filter by course"
// @Param completed query bool false "Filter by completion state"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} services.ProgressSummary
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress [get]
func (h *ProgressHandler) GetSummary(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	courseID, ok := ParseOptionalUintQuery(c, "course_id")
	if !ok {
		return
	}

	filters := repositories.ProgressFilters{
		CourseID:  courseID,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = ParsePagination(c, 20, 100)

	if raw := c.Query("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid completed",
				Details: "must be true or false",
			})
			return
		}
		filters.Completed = &completed
	}

	summary, err := h.progressService.GetSummary(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListAchievements retrieves the learner's earned achievements
// @Summary List achievements
// @Description Retrieves every achievement the learner has earned, oldest first
// @Tags achievements
// @Accept json
// @Produce json
// @Success 200 {object} []models.Achievement
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /achievements [get]
func (h *ProgressHandler) ListAchievements(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	achievements, err := h.achievementService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, achievements)
}

func (h *ProgressHandler) handleServiceError(c *gin.Context, err error) {
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

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
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
	case errors.Is(err, services.ErrProgressNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Course progress not found",
		})
	case errors.Is(err, services.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Course not found",
		})
	case errors.Is(err, services.ErrProgressConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Progress was modified concurrently, please retry",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized access",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Resource conflict",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
