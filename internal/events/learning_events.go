package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of learning events
type EventType string

const (
	// Progress events
	EventLessonCompleted EventType = "learning.lesson_completed"
	EventCourseCompleted EventType = "learning.course_completed"

	// Achievement events
	EventAchievementUnlocked EventType = "learning.achievement_unlocked"

	// Study-goal events
	EventWeeklyGoalAchieved EventType = "learning.weekly_goal_achieved"
)

// LearningEvent is the base event structure for all published learning events
type LearningEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Progress event payloads

type LessonCompletedEvent struct {
	UserID           string   `json:"user_id"`
	CourseID         uint     `json:"course_id"`
	LessonID         string   `json:"lesson_id"`
	SectionID        string   `json:"section_id,omitempty"`
	WatchTimeSeconds int      `json:"watch_time_seconds"`
	QuizScore        *float64 `json:"quiz_score,omitempty"`
	OverallProgress  int      `json:"overall_progress"`
	StreakDays       int      `json:"streak_days"`
}

type CourseCompletedEvent struct {
	UserID          string    `json:"user_id"`
	CourseID        uint      `json:"course_id"`
	CompletedAt     time.Time `json:"completed_at"`
	LessonsFinished int       `json:"lessons_finished"`
	TotalWatchTime  int64     `json:"total_watch_time_seconds"`
}

// Achievement event payload

type AchievementUnlockedEvent struct {
	UserID          string    `json:"user_id"`
	AchievementType string    `json:"achievement_type"`
	CourseID        *uint     `json:"course_id,omitempty"`
	EarnedAt        time.Time `json:"earned_at"`
}

// Study-goal event payload

type WeeklyGoalAchievedEvent struct {
	UserID         string    `json:"user_id"`
	CourseID       uint      `json:"course_id"`
	WeekStart      time.Time `json:"week_start"`
	MinutesStudied int       `json:"minutes_studied"`
	WeeklyGoal     int       `json:"weekly_goal_minutes"`
}

// Event factory functions

func NewLessonCompletedEvent(userID string, courseID uint, lessonID, sectionID string, watchTimeSeconds int, quizScore *float64, overallProgress, streakDays int) *LearningEvent {
	return &LearningEvent{
		ID:        generateEventID(),
		Type:      EventLessonCompleted,
		Timestamp: time.Now(),
		Source:    "learning-progress-service",
		Version:   "1.0",
		Data: LessonCompletedEvent{
			UserID:           userID,
			CourseID:         courseID,
			LessonID:         lessonID,
			SectionID:        sectionID,
			WatchTimeSeconds: watchTimeSeconds,
			QuizScore:        quizScore,
			OverallProgress:  overallProgress,
			StreakDays:       streakDays,
		},
	}
}

func NewCourseCompletedEvent(userID string, courseID uint, completedAt time.Time, lessonsFinished int, totalWatchTime int64) *LearningEvent {
	return &LearningEvent{
		ID:        generateEventID(),
		Type:      EventCourseCompleted,
		Timestamp: time.Now(),
		Source:    "learning-progress-service",
		Version:   "1.0",
		Data: CourseCompletedEvent{
			UserID:          userID,
			CourseID:        courseID,
			CompletedAt:     completedAt,
			LessonsFinished: lessonsFinished,
			TotalWatchTime:  totalWatchTime,
		},
	}
}

func NewAchievementUnlockedEvent(userID, achievementType string, courseID *uint, earnedAt time.Time) *LearningEvent {
	return &LearningEvent{
		ID:        generateEventID(),
		Type:      EventAchievementUnlocked,
		Timestamp: time.Now(),
		Source:    "learning-progress-service",
		Version:   "1.0",
		Data: AchievementUnlockedEvent{
			UserID:          userID,
			AchievementType: achievementType,
			CourseID:        courseID,
			EarnedAt:        earnedAt,
		},
	}
}

func NewWeeklyGoalAchievedEvent(userID string, courseID uint, weekStart time.Time, minutesStudied, weeklyGoal int) *LearningEvent {
	return &LearningEvent{
		ID:        generateEventID(),
		Type:      EventWeeklyGoalAchieved,
		Timestamp: time.Now(),
		Source:    "learning-progress-service",
		Version:   "1.0",
		Data: WeeklyGoalAchievedEvent{
			UserID:         userID,
			CourseID:       courseID,
			WeekStart:      weekStart,
			MinutesStudied: minutesStudied,
			WeeklyGoal:     weeklyGoal,
		},
	}
}

// Helper function to generate unique event IDs
func generateEventID() string {
	return uuid.NewString()
}

// GenerateEventID is the exported version for external use
func GenerateEventID() string {
	return generateEventID()
}
