package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
)

// SessionRepository persists interaction-telemetry sessions. A session is
// open while ended_at is NULL; a partial unique index keeps at most one open
// row per (user, course, lesson) triple.
type SessionRepository interface {
	// GetOpen returns the open session for the triple, or nil, nil when
	// nothing is open.
	GetOpen(ctx context.Context, userID string, courseID uint, lessonID string) (*models.LearningSession, error)

	// GetOrCreateOpen resolves the open session for the triple, inserting one
	// when none exists. Concurrent inserts collapse onto the surviving row via
	// the partial unique index. The bool reports whether a row was created.
	GetOrCreateOpen(ctx context.Context, userID string, courseID uint, lessonID string, startedAt time.Time) (*models.LearningSession, bool, error)

	// Mutation
	AddInteraction(ctx context.Context, interaction *models.Interaction) error // also touches the session's updated_at
	UpdateVideoProgress(ctx context.Context, id uint, percent float64) error   // last-write-wins snapshot
	Close(ctx context.Context, id uint, endedAt time.Time, durationSeconds int) error

	// ListInWindow returns every matching session with interactions
	// preloaded, ordered by start time. Metrics are computed over the whole
	// window, so there is no pagination.
	ListInWindow(ctx context.Context, userID string, filters SessionFilters) ([]*models.LearningSession, error)

	// Reaper support: open sessions with no activity since the cutoff.
	ListIdleOpen(ctx context.Context, idleSince time.Time, limit int) ([]*models.LearningSession, error)
}
