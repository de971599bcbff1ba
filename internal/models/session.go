package models

import (
	"time"

	"gorm.io/datatypes"
)

// InteractionKind tags telemetry interactions with a closed set of known
// actions; anything else collapses to InteractionOther with the original
// action preserved in RawAction.
type InteractionKind string

const (
	InteractionPlay             InteractionKind = "play"
	InteractionPause            InteractionKind = "pause"
	InteractionSeek             InteractionKind = "seek"
	InteractionNote             InteractionKind = "note"
	InteractionQuizCompleted    InteractionKind = "quiz_completed"
	InteractionFullscreenToggle InteractionKind = "fullscreen_toggle"
	InteractionOther            InteractionKind = "other"
)

// InteractionKindFromAction normalizes a raw client action string.
func InteractionKindFromAction(action string) InteractionKind {
	switch k := InteractionKind(action); k {
	case InteractionPlay, InteractionPause, InteractionSeek,
		InteractionNote, InteractionQuizCompleted, InteractionFullscreenToggle:
		return k
	default:
		return InteractionOther
	}
}

// LearningSession is one bounded window of interaction telemetry for a
// (user, course, lesson) triple. A session is open while EndedAt is NULL;
// at most one open session per triple (partial unique index, see
// repositories/postgres migrations).
type LearningSession struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;size:255;index:idx_sessions_user_course"`
	CourseID uint   `json:"course_id" gorm:"not null;index:idx_sessions_user_course"`
	LessonID string `json:"lesson_id" gorm:"not null;size:255;index"`

	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	EndedAt         *time.Time `json:"ended_at" gorm:"index"`
	DurationSeconds int        `json:"duration_seconds" gorm:"default:0"`

	// Point-in-time snapshot, last-write-wins (not monotonic)
	VideoProgressPercent float64 `json:"video_progress_percent" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Interactions []Interaction `json:"interactions" gorm:"foreignKey:SessionID"`
}

// Interaction is one appended telemetry record, stamped with its own
// timestamp (not the session's).
type Interaction struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	SessionID  uint            `json:"-" gorm:"not null;index"`
	Kind       InteractionKind `json:"kind" gorm:"not null;size:30;index"`
	RawAction  string          `json:"raw_action,omitempty" gorm:"size:100"` // original action when Kind is "other"
	OccurredAt time.Time       `json:"occurred_at" gorm:"not null"`
	Detail     datatypes.JSON  `json:"detail,omitempty" gorm:"type:jsonb"`
}

func (LearningSession) TableName() string {
	return "learning_sessions"
}

func (Interaction) TableName() string {
	return "interactions"
}
