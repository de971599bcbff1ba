package models

import (
	"time"
)

type AchievementType string

const (
	AchievementFirstCourse     AchievementType = "first_course"
	AchievementCourseCompleted AchievementType = "course_completed"
	AchievementStreak7         AchievementType = "streak_7"
	AchievementStreak30        AchievementType = "streak_30"
)

// CourseScoped reports whether the type is granted once per course
// (CourseID set) or once globally per learner (CourseID nil).
func (t AchievementType) CourseScoped() bool {
	return t == AchievementCourseCompleted
}

// Achievement is a one-time badge. At most one row per (user, type) for
// global types and per (user, type, course) for course-scoped types,
// enforced by partial unique indexes plus the engine's idempotent scan.
type Achievement struct {
	ID       uint            `json:"id" gorm:"primaryKey"`
	UserID   string          `json:"user_id" gorm:"not null;size:255;index"`
	Type     AchievementType `json:"type" gorm:"not null;size:50"`
	CourseID *uint           `json:"course_id"` // nil for global types
	EarnedAt time.Time       `json:"earned_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}
