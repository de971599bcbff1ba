package models

import (
	"time"
)

// StudyGoal is embedded in CourseProgress; weekly bucket goalAchieved is
// recomputed against WeeklyMinutes on every study event.
type StudyGoal struct {
	DailyMinutes  int `json:"daily_minutes" gorm:"default:30" validate:"omitempty,min=5,max=720"`
	WeeklyMinutes int `json:"weekly_minutes" gorm:"default:150" validate:"omitempty,min=10,max=5040"`
}

// DefaultStudyGoal is applied when a progress row is created lazily.
func DefaultStudyGoal() StudyGoal {
	return StudyGoal{DailyMinutes: 30, WeeklyMinutes: 150}
}

// CourseProgress is the per-(learner, course) advancement record. One row per
// pair, created lazily on the first mutating call and never deleted while the
// enrollment exists.
type CourseProgress struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_progress_user_course"`
	CourseID uint   `json:"course_id" gorm:"not null;uniqueIndex:idx_progress_user_course"`

	// Playback cursor (last position the learner was at)
	CurrentLessonID        string `json:"current_lesson_id" gorm:"size:255"`
	CurrentSectionID       string `json:"current_section_id" gorm:"size:255"`
	CurrentPositionSeconds int    `json:"current_position_seconds" gorm:"default:0"`

	// Derived advancement
	OverallProgress       int   `json:"overall_progress" gorm:"default:0"` // 0-100, non-decreasing
	TotalWatchTimeSeconds int64 `json:"total_watch_time_seconds" gorm:"default:0"`

	// Streak state; LastStreakDate is a calendar date (UTC, midnight)
	StreakDays     int        `json:"streak_days" gorm:"default:0"`
	LastStreakDate *time.Time `json:"last_streak_date" gorm:"type:date"`

	StudyGoal StudyGoal `json:"study_goal" gorm:"embedded;embeddedPrefix:goal_"`

	// Set once when OverallProgress first reaches 100, never cleared
	CompletedAt    *time.Time `json:"completed_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Optimistic locking (see repositories/postgres)
	Version int `json:"-" gorm:"default:1"`

	// Relations
	CompletedLessons []CompletedLesson `json:"completed_lessons" gorm:"foreignKey:ProgressID"`
	Notes            []Note            `json:"notes" gorm:"foreignKey:ProgressID"`
	Bookmarks        []Bookmark        `json:"bookmarks" gorm:"foreignKey:ProgressID"`
	WeeklyStats      []WeeklyStat      `json:"weekly_stats" gorm:"foreignKey:ProgressID"`
}

// CompletedLesson records one finished lesson; unique per (progress, lesson).
type CompletedLesson struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProgressID       uint      `json:"-" gorm:"not null;uniqueIndex:idx_completed_progress_lesson"`
	LessonID         string    `json:"lesson_id" gorm:"not null;size:255;uniqueIndex:idx_completed_progress_lesson"`
	SectionID        string    `json:"section_id" gorm:"size:255"`
	CompletedAt      time.Time `json:"completed_at"`
	WatchTimeSeconds int       `json:"watch_time_seconds" gorm:"default:0"`
	QuizScore        *float64  `json:"quiz_score"` // best score so far; nil if no quiz taken
	QuizAttempts     int       `json:"quiz_attempts" gorm:"default:0"`
}

// Note is append-only; no dedup and no per-lesson limit at this layer.
type Note struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProgressID       uint      `json:"-" gorm:"not null;index"`
	LessonID         string    `json:"lesson_id" gorm:"not null;size:255;index"`
	Content          string    `json:"content" gorm:"not null;type:text" validate:"required,max=10000"`
	TimestampSeconds int       `json:"timestamp_seconds" gorm:"default:0"`
	AIGenerated      bool      `json:"ai_generated" gorm:"default:false"`
	CreatedAt        time.Time `json:"created_at"`
}

// Bookmark is append-only, same rules as Note.
type Bookmark struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProgressID       uint      `json:"-" gorm:"not null;index"`
	LessonID         string    `json:"lesson_id" gorm:"not null;size:255;index"`
	Title            string    `json:"title" gorm:"not null;size:200" validate:"required,max=200"`
	TimestampSeconds int       `json:"timestamp_seconds" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at"`
}

// WeeklyStat is one study-aggregation bucket. WeekStart is the most recent
// Sunday (UTC, date only); at most one row per (progress, week start).
type WeeklyStat struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProgressID       uint      `json:"-" gorm:"not null;uniqueIndex:idx_weekly_progress_week"`
	WeekStart        time.Time `json:"week_start" gorm:"type:date;not null;uniqueIndex:idx_weekly_progress_week"`
	MinutesStudied   int       `json:"minutes_studied" gorm:"default:0"`
	LessonsCompleted int       `json:"lessons_completed" gorm:"default:0"`
	GoalAchieved     bool      `json:"goal_achieved" gorm:"default:false"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

func (CompletedLesson) TableName() string {
	return "completed_lessons"
}

func (WeeklyStat) TableName() string {
	return "weekly_stats"
}
