package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/cache"
	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"gorm.io/datatypes"
)

// Derived metrics are cached briefly; any tracked interaction invalidates
// the learner's whole metrics keyspace.
const metricsCacheTTL = 5 * time.Minute

// AnalyticsService ingests interaction telemetry into sessions and derives
// performance metrics from them.
type AnalyticsService interface {
	// TrackInteraction appends one telemetry event to the learner's open
	// session for the (course, lesson) pair, opening a session when none is.
	TrackInteraction(ctx context.Context, userID string, req *TrackInteractionRequest) (*TrackResult, error)

	// GetPerformanceMetrics computes the metrics block over the timeframe
	// window ("7d", "30d", "90d"; anything else falls back to "7d").
	GetPerformanceMetrics(ctx context.Context, userID string, courseID *uint, timeframe string) (*PerformanceMetrics, error)

	// CloseIdleSessions force-closes open sessions whose last activity is
	// older than idleFor, stamping the end at that last activity. Returns how
	// many sessions were closed.
	CloseIdleSessions(ctx context.Context, idleFor time.Duration, limit int) (int, error)
}

type analyticsService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	opLog     *ServiceLogger
	validator *utils.Validator
	cache     cache.CacheService
	clock     utils.Clock
}

func NewAnalyticsService(repo repositories.Repository, logger *slog.Logger, validator *utils.Validator, cacheService cache.CacheService, clock utils.Clock) AnalyticsService {
	return &analyticsService{
		repo:      repo,
		logger:    logger,
		opLog:     NewServiceLogger(logger, "analytics"),
		validator: validator,
		cache:     cacheService,
		clock:     clock,
	}
}

// ===== DATA STRUCTURES =====

type TrackInteractionRequest struct {
	CourseID uint   `json:"course_id" validate:"required"`
	LessonID string `json:"lesson_id" validate:"required,max=255"`

	// Optional interaction event; no action means session-data-only updates.
	Action string                 `json:"action" validate:"omitempty,max=100"`
	Data   map[string]interface{} `json:"data"`

	// Optional session-level updates riding on the same call.
	SessionData *SessionDataUpdate `json:"session_data"`
}

type SessionDataUpdate struct {
	EndTime       *time.Time `json:"end_time"`
	VideoProgress *float64   `json:"video_progress" validate:"omitempty,min=0,max=100"`
}

type TrackResult struct {
	SessionID   uint `json:"session_id"`
	SessionOpen bool `json:"session_open"`
}

// ===== TELEMETRY INGESTION =====

func (s *analyticsService) TrackInteraction(ctx context.Context, userID string, req *TrackInteractionRequest) (result *TrackResult, err error) {
	op := s.opLog.WithOperation(ctx, "track_interaction", userID)
	defer func() { op.LogResult(req.CourseID, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session, created, err := s.repo.Session().GetOrCreateOpen(ctx, userID, req.CourseID, req.LessonID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve open session: %w", err)
	}
	if created {
		s.logger.Debug("Opened learning session",
			"session_id", session.ID,
			"user_id", userID,
			"course_id", req.CourseID,
			"lesson_id", req.LessonID)
	}

	if req.Action != "" {
		interaction := &models.Interaction{
			SessionID:  session.ID,
			Kind:       models.InteractionKindFromAction(req.Action),
			OccurredAt: now,
		}
		if interaction.Kind == models.InteractionOther {
			interaction.RawAction = req.Action
		}
		if len(req.Data) > 0 {
			payload, merr := json.Marshal(req.Data)
			if merr != nil {
				return nil, fmt.Errorf("failed to encode interaction data: %w", merr)
			}
			interaction.Detail = datatypes.JSON(payload)
		}
		if err = s.repo.Session().AddInteraction(ctx, interaction); err != nil {
			return nil, fmt.Errorf("failed to record interaction: %w", err)
		}
	}

	open := true
	if req.SessionData != nil {
		if req.SessionData.VideoProgress != nil {
			if err = s.repo.Session().UpdateVideoProgress(ctx, session.ID, *req.SessionData.VideoProgress); err != nil {
				return nil, fmt.Errorf("failed to update video progress: %w", err)
			}
		}
		if req.SessionData.EndTime != nil {
			endedAt := *req.SessionData.EndTime
			duration := int(endedAt.Sub(session.StartedAt).Seconds())
			if duration < 0 {
				s.logger.Warn("Session end time precedes start; clamping duration to zero",
					"session_id", session.ID,
					"started_at", session.StartedAt,
					"ended_at", endedAt)
				duration = 0
			}
			if err = s.repo.Session().Close(ctx, session.ID, endedAt, duration); err != nil {
				return nil, fmt.Errorf("failed to close session: %w", err)
			}
			open = false
		}
	}

	s.invalidateMetrics(ctx, userID)

	return &TrackResult{SessionID: session.ID, SessionOpen: open}, nil
}

// ===== DERIVED METRICS =====

func (s *analyticsService) GetPerformanceMetrics(ctx context.Context, userID string, courseID *uint, timeframe string) (*PerformanceMetrics, error) {
	window, label := parseTimeframe(timeframe)

	cacheKey := metricsCacheKey(userID, courseID, label)
	if s.cache != nil {
		var cached PerformanceMetrics
		cerr := s.cache.Get(ctx, cacheKey, &cached)
		if cerr == nil {
			return &cached, nil
		}
		if !errors.Is(cerr, cache.ErrCacheMiss) {
			s.logger.Warn("Metrics cache read failed", "key", cacheKey, "error", cerr)
		}
	}

	now := s.clock.Now()
	from := now.Add(-window)
	sessions, err := s.repo.Session().ListInWindow(ctx, userID, repositories.SessionFilters{
		CourseID: courseID,
		From:     &from,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions for metrics: %w", err)
	}

	metrics := CalculateMetrics(sessions)
	metrics.Timeframe = label
	metrics.GeneratedAt = now

	if s.cache != nil {
		if cerr := s.cache.Set(ctx, cacheKey, metrics, metricsCacheTTL); cerr != nil {
			s.logger.Warn("Metrics cache write failed", "key", cacheKey, "error", cerr)
		}
	}

	return metrics, nil
}

// parseTimeframe maps the public timeframe labels to a window length.
// Unrecognized values fall back to seven days rather than erroring.
func parseTimeframe(timeframe string) (time.Duration, string) {
	switch timeframe {
	case "30d":
		return 30 * 24 * time.Hour, "30d"
	case "90d":
		return 90 * 24 * time.Hour, "90d"
	default:
		return 7 * 24 * time.Hour, "7d"
	}
}

func metricsCacheKey(userID string, courseID *uint, timeframe string) string {
	scope := "all"
	if courseID != nil {
		scope = fmt.Sprintf("%d", *courseID)
	}
	return fmt.Sprintf("metrics:%s:%s:%s", userID, scope, timeframe)
}

// invalidateMetrics drops every cached metrics block for the learner. Cache
// trouble is logged and swallowed; stale metrics age out via TTL anyway.
func (s *analyticsService) invalidateMetrics(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("metrics:%s:*", userID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.logger.Warn("Metrics cache invalidation failed", "pattern", pattern, "error", err)
	}
}

// ===== SESSION REAPER =====

func (s *analyticsService) CloseIdleSessions(ctx context.Context, idleFor time.Duration, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-idleFor)
	sessions, err := s.repo.Session().ListIdleOpen(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	closed := 0
	touchedUsers := map[string]bool{}
	for _, session := range sessions {
		// The end is stamped at the last recorded activity, not at sweep
		// time, so an abandoned tab doesn't inflate watch time.
		endedAt := session.UpdatedAt
		duration := int(endedAt.Sub(session.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}
		if err := s.repo.Session().Close(ctx, session.ID, endedAt, duration); err != nil {
			s.logger.Error("Failed to close idle session",
				"session_id", session.ID,
				"user_id", session.UserID,
				"error", err)
			continue
		}
		closed++
		touchedUsers[session.UserID] = true
	}

	for userID := range touchedUsers {
		s.invalidateMetrics(ctx, userID)
	}

	if closed > 0 {
		s.logger.Info("Closed idle learning sessions", "count", closed, "idle_for", idleFor)
	}

	return closed, nil
}
