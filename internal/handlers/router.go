package handlers

import (
	"github.com/SAP-F-2025/learning-progress-service/internal/services"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	progressHandler  *ProgressHandler
	analyticsHandler *AnalyticsHandler
	reportHandler    *ReportHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		progressHandler:  NewProgressHandler(serviceManager.Progress(), serviceManager.Achievements(), validator, logger),
		analyticsHandler: NewAnalyticsHandler(serviceManager.Analytics(), validator, logger),
		reportHandler:    NewReportHandler(serviceManager.Reports(), validator, logger),
	}
}

// SetupRoutes sets up all API routes. Everything under /api/v1 requires a
// resolved learner identity from the auth middleware; /health does not.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		// Progress routes
		progress := v1.Group("/progress")
		{
			progress.GET("", hm.progressHandler.GetSummary)
			progress.GET("/courses/:course_id", hm.progressHandler.GetCourseProgress)
			progress.POST("/courses/:course_id/lessons/:lesson_id/complete", hm.progressHandler.CompleteLesson)
			progress.PUT("/courses/:course_id/position", hm.progressHandler.UpdatePosition)
			progress.POST("/courses/:course_id/notes", hm.progressHandler.AddNote)
			progress.POST("/courses/:course_id/bookmarks", hm.progressHandler.AddBookmark)
			progress.PUT("/courses/:course_id/goal", hm.progressHandler.UpdateStudyGoal)
		}

		// Achievement routes
		v1.GET("/achievements", hm.progressHandler.ListAchievements)

		// Analytics routes
		analytics := v1.Group("/analytics")
		{
			analytics.POST("/track", hm.analyticsHandler.TrackInteraction)
			analytics.GET("/metrics", hm.analyticsHandler.GetMetrics)

			// Reports
			analytics.GET("/report", hm.reportHandler.GetReport)
			analytics.POST("/reports/export", hm.reportHandler.RequestExport)
			analytics.GET("/reports", hm.reportHandler.ListExports)
			analytics.GET("/reports/:id", hm.reportHandler.GetExport)
			analytics.GET("/reports/:id/download", hm.reportHandler.DownloadExport)
		}
	}
}
