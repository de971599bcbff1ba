package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/events"
	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
)

// Optimistic-save retry policy for read-modify-write progress mutations.
// A conflict means another request for the same (user, course) pair won the
// race; we reload and reapply instead of overwriting its work.
const (
	maxSaveAttempts = 3
	saveRetryBase   = 20 * time.Millisecond
	saveRetryJitter = 30 * time.Millisecond
)

// ProgressService owns every mutation of a learner's per-course advancement
// record and the read views over it. Rows are created lazily on the first
// mutating call for a (user, course) pair.
type ProgressService interface {
	CompleteLesson(ctx context.Context, userID string, courseID uint, lessonID string, req *CompleteLessonRequest) (*CompletionResult, error)
	UpdatePosition(ctx context.Context, userID string, courseID uint, req *UpdatePositionRequest) (*PositionResult, error)
	AddNote(ctx context.Context, userID string, courseID uint, req *AddNoteRequest) (*models.Note, error)
	AddBookmark(ctx context.Context, userID string, courseID uint, req *AddBookmarkRequest) (*models.Bookmark, error)
	UpdateStudyGoal(ctx context.Context, userID string, courseID uint, req *UpdateStudyGoalRequest) (*models.StudyGoal, error)
	GetCourseProgress(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error)
	GetSummary(ctx context.Context, userID string, filters repositories.ProgressFilters) (*ProgressSummary, error)
}

type progressService struct {
	repo         repositories.Repository
	logger       *slog.Logger
	opLog        *ServiceLogger
	validator    *utils.Validator
	tracker      *ProgressTracker
	achievements AchievementService
	publisher    events.EventPublisher
}

func NewProgressService(repo repositories.Repository, logger *slog.Logger, validator *utils.Validator, tracker *ProgressTracker, achievements AchievementService, publisher events.EventPublisher) ProgressService {
	return &progressService{
		repo:         repo,
		logger:       logger,
		opLog:        NewServiceLogger(logger, "progress"),
		validator:    validator,
		tracker:      tracker,
		achievements: achievements,
		publisher:    publisher,
	}
}

// ===== DATA STRUCTURES =====

type CompleteLessonRequest struct {
	SectionID        string   `json:"section_id" validate:"omitempty,max=255"`
	WatchTimeSeconds int      `json:"watch_time_seconds" validate:"min=0"`
	QuizScore        *float64 `json:"quiz_score" validate:"omitempty,min=0,max=100"`
}

type CompletionResult struct {
	OverallProgress       int                   `json:"overall_progress"`
	CompletedLessonsCount int                   `json:"completed_lessons_count"`
	StreakDays            int                   `json:"streak_days"`
	CourseCompleted       bool                  `json:"course_completed"`
	NewAchievements       []*models.Achievement `json:"new_achievements,omitempty"`
}

type UpdatePositionRequest struct {
	LessonID        string `json:"lesson_id" validate:"required,max=255"`
	SectionID       string `json:"section_id" validate:"omitempty,max=255"`
	PositionSeconds int    `json:"position_seconds" validate:"min=0"`
}

type PositionResult struct {
	CurrentLessonID        string    `json:"current_lesson_id"`
	CurrentSectionID       string    `json:"current_section_id"`
	CurrentPositionSeconds int       `json:"current_position_seconds"`
	LastAccessedAt         time.Time `json:"last_accessed_at"`
}

type AddNoteRequest struct {
	LessonID         string `json:"lesson_id" validate:"required,max=255"`
	Content          string `json:"content" validate:"required,max=10000"`
	TimestampSeconds int    `json:"timestamp_seconds" validate:"min=0"`
	AIGenerated      bool   `json:"ai_generated"`
}

type AddBookmarkRequest struct {
	LessonID         string `json:"lesson_id" validate:"required,max=255"`
	Title            string `json:"title" validate:"required,max=200"`
	TimestampSeconds int    `json:"timestamp_seconds" validate:"min=0"`
}

type UpdateStudyGoalRequest struct {
	DailyMinutes  int `json:"daily_minutes" validate:"required,min=5,max=720"`
	WeeklyMinutes int `json:"weekly_minutes" validate:"required,min=10,max=5040"`
}

type ProgressSummary struct {
	Stats   *repositories.LearnerStats `json:"stats"`
	Courses []*models.CourseProgress   `json:"courses"`
	Total   int64                      `json:"total"`
}

// ===== LESSON COMPLETION =====

func (s *progressService) CompleteLesson(ctx context.Context, userID string, courseID uint, lessonID string, req *CompleteLessonRequest) (result *CompletionResult, err error) {
	op := s.opLog.WithOperation(ctx, "complete_lesson", userID)
	defer func() { op.LogResult(courseID, err) }()

	if lessonID == "" {
		return nil, NewValidationError("lesson_id", "is required", lessonID)
	}
	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Missing catalog rows yield a zero total, which keeps the percentage at
	// zero instead of failing the completion.
	totalLessons, err := s.repo.Course().TotalLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve course lesson count: %w", err)
	}

	var progress *models.CourseProgress
	var outcome CompletionOutcome

	for attempt := 1; ; attempt++ {
		progress, err = s.repo.Progress().GetOrCreate(ctx, userID, courseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load course progress: %w", err)
		}

		var change repositories.ProgressChange
		outcome, change = s.tracker.CompleteLesson(progress, lessonID, req.SectionID, req.WatchTimeSeconds, req.QuizScore, totalLessons)

		err = s.repo.Progress().Save(ctx, progress, change)
		if err == nil {
			break
		}
		if !repositories.IsVersionConflict(err) {
			return nil, fmt.Errorf("failed to save course progress: %w", err)
		}
		if attempt >= maxSaveAttempts {
			s.logger.Warn("Progress save kept conflicting",
				"user_id", userID,
				"course_id", courseID,
				"lesson_id", lessonID,
				"attempts", attempt)
			return nil, ErrProgressConflict
		}
		if err = waitForRetry(ctx, attempt); err != nil {
			return nil, err
		}
	}

	// Badges and events ride outside the save: their failure must never fail
	// the completion, and the idempotent award check catches up next time.
	granted := s.achievements.CheckAndAward(ctx, progress)
	s.publishCompletionEvents(ctx, userID, courseID, lessonID, req, progress, outcome)

	return &CompletionResult{
		OverallProgress:       progress.OverallProgress,
		CompletedLessonsCount: len(progress.CompletedLessons),
		StreakDays:            progress.StreakDays,
		CourseCompleted:       outcome.CourseJustCompleted,
		NewAchievements:       granted,
	}, nil
}

func (s *progressService) publishCompletionEvents(ctx context.Context, userID string, courseID uint, lessonID string, req *CompleteLessonRequest, progress *models.CourseProgress, outcome CompletionOutcome) {
	publish := func(event *events.LearningEvent) {
		if err := s.publisher.PublishLearningEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish learning event",
				"event_type", event.Type,
				"user_id", userID,
				"course_id", courseID,
				"error", err)
		}
	}

	publish(events.NewLessonCompletedEvent(userID, courseID, lessonID, req.SectionID,
		req.WatchTimeSeconds, req.QuizScore, progress.OverallProgress, progress.StreakDays))

	if outcome.CourseJustCompleted && progress.CompletedAt != nil {
		publish(events.NewCourseCompletedEvent(userID, courseID, *progress.CompletedAt,
			len(progress.CompletedLessons), progress.TotalWatchTimeSeconds))
	}

	if outcome.GoalJustAchieved {
		publish(events.NewWeeklyGoalAchievedEvent(userID, courseID, outcome.WeekStart,
			outcome.WeeklyMinutes, progress.StudyGoal.WeeklyMinutes))
	}
}

// waitForRetry sleeps a short jittered backoff between optimistic-save
// attempts, bailing out early when the request context ends.
func waitForRetry(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt)*saveRetryBase +
		time.Duration(rand.Int63n(int64(saveRetryJitter)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// ===== CURSOR, NOTES, BOOKMARKS, GOAL =====

func (s *progressService) UpdatePosition(ctx context.Context, userID string, courseID uint, req *UpdatePositionRequest) (result *PositionResult, err error) {
	op := s.opLog.WithOperation(ctx, "update_position", userID)
	defer func() { op.LogResult(courseID, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().GetOrCreate(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	s.tracker.UpdateCursor(progress, req.LessonID, req.SectionID, req.PositionSeconds)

	// The cursor is a pure overwrite, so it skips the versioned save path.
	if err = s.repo.Progress().UpdateCursor(ctx, progress.ID, progress.CurrentLessonID,
		progress.CurrentSectionID, progress.CurrentPositionSeconds, progress.LastAccessedAt); err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}

	return &PositionResult{
		CurrentLessonID:        progress.CurrentLessonID,
		CurrentSectionID:       progress.CurrentSectionID,
		CurrentPositionSeconds: progress.CurrentPositionSeconds,
		LastAccessedAt:         progress.LastAccessedAt,
	}, nil
}

func (s *progressService) AddNote(ctx context.Context, userID string, courseID uint, req *AddNoteRequest) (note *models.Note, err error) {
	op := s.opLog.WithOperation(ctx, "add_note", userID)
	defer func() { op.LogResult(courseID, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().GetOrCreate(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	note = &models.Note{
		ProgressID:       progress.ID,
		LessonID:         req.LessonID,
		Content:          req.Content,
		TimestampSeconds: req.TimestampSeconds,
		AIGenerated:      req.AIGenerated,
	}
	if err = s.repo.Progress().AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	return note, nil
}

func (s *progressService) AddBookmark(ctx context.Context, userID string, courseID uint, req *AddBookmarkRequest) (bookmark *models.Bookmark, err error) {
	op := s.opLog.WithOperation(ctx, "add_bookmark", userID)
	defer func() { op.LogResult(courseID, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().GetOrCreate(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	bookmark = &models.Bookmark{
		ProgressID:       progress.ID,
		LessonID:         req.LessonID,
		Title:            req.Title,
		TimestampSeconds: req.TimestampSeconds,
	}
	if err = s.repo.Progress().AddBookmark(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}

	return bookmark, nil
}

func (s *progressService) UpdateStudyGoal(ctx context.Context, userID string, courseID uint, req *UpdateStudyGoalRequest) (goal *models.StudyGoal, err error) {
	op := s.opLog.WithOperation(ctx, "update_study_goal", userID)
	defer func() { op.LogResult(courseID, err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().GetOrCreate(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	updated := models.StudyGoal{
		DailyMinutes:  req.DailyMinutes,
		WeeklyMinutes: req.WeeklyMinutes,
	}
	if err = s.repo.Progress().UpdateStudyGoal(ctx, progress.ID, updated); err != nil {
		return nil, fmt.Errorf("failed to update study goal: %w", err)
	}

	return &updated, nil
}

// ===== READ VIEWS =====

func (s *progressService) GetCourseProgress(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	progress, err := s.repo.Progress().GetWithDetails(ctx, userID, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	return progress, nil
}

func (s *progressService) GetSummary(ctx context.Context, userID string, filters repositories.ProgressFilters) (*ProgressSummary, error) {
	stats, err := s.repo.Progress().GetLearnerStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learner stats: %w", err)
	}

	courses, total, err := s.repo.Progress().ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list course progress: %w", err)
	}

	return &ProgressSummary{
		Stats:   stats,
		Courses: courses,
		Total:   total,
	}, nil
}
