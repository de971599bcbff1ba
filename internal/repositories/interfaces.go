package repositories

import (
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ProgressFilters struct {
	CourseID  *uint  `json:"course_id"`
	Completed *bool  `json:"completed"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	SortBy    string `json:"sort_by"`    // "last_accessed_at", "overall_progress", "created_at"
	SortOrder string `json:"sort_order"` // "asc", "desc"
}

// SessionFilters narrows a window query; no pagination because metrics
// consume the whole window at once.
type SessionFilters struct {
	CourseID *uint      `json:"course_id"`
	LessonID *string    `json:"lesson_id"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	OpenOnly bool       `json:"open_only"`
}

type ReportJobFilters struct {
	Status *models.ReportJobStatus `json:"status"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// ===== MUTATION DESCRIPTORS =====

// ProgressChange lists the child rows a tracker transition produced.
// ProgressRepository.Save persists them together with the version-checked
// parent update in a single transaction.
type ProgressChange struct {
	NewLessons         []*models.CompletedLesson `json:"new_lessons"`
	UpdatedLessons     []*models.CompletedLesson `json:"updated_lessons"`
	NewWeeklyStats     []*models.WeeklyStat      `json:"new_weekly_stats"`
	UpdatedWeeklyStats []*models.WeeklyStat      `json:"updated_weekly_stats"`
}

func (c ProgressChange) Empty() bool {
	return len(c.NewLessons) == 0 &&
		len(c.UpdatedLessons) == 0 &&
		len(c.NewWeeklyStats) == 0 &&
		len(c.UpdatedWeeklyStats) == 0
}

// ===== SHARED STATISTICS STRUCTS =====

// LearnerStats aggregates a learner's advancement across all tracked courses.
type LearnerStats struct {
	CoursesTracked        int   `json:"courses_tracked"`
	CoursesCompleted      int   `json:"courses_completed"`
	LessonsCompleted      int   `json:"lessons_completed"`
	TotalWatchTimeSeconds int64 `json:"total_watch_time_seconds"`
	BestCurrentStreak     int   `json:"best_current_streak"`
}
