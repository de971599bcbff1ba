package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/events"
	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
)

// AchievementService grants study badges and lists them per learner.
type AchievementService interface {
	// CheckAndAward inspects an updated progress snapshot and grants every
	// achievement it newly qualifies for, returning the grants that stuck.
	// Grant failures are logged and skipped, never returned: the study event
	// that triggered the check must not fail because a badge write did.
	CheckAndAward(ctx context.Context, progress *models.CourseProgress) []*models.Achievement
	ListForUser(ctx context.Context, userID string) ([]*models.Achievement, error)
}

type achievementService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
	clock     utils.Clock
}

func NewAchievementService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, clock utils.Clock) AchievementService {
	return &achievementService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		clock:     clock,
	}
}

// ===== RULE EVALUATION =====

// EvaluateAchievements returns the achievements the snapshot qualifies for
// that are not already held. Rules run in a fixed order and only ever add;
// nothing is revoked. first_course, streak_7 and streak_30 are global
// (one per learner); course_completed is granted once per course.
func EvaluateAchievements(existing []*models.Achievement, progress *models.CourseProgress, now time.Time) []*models.Achievement {
	var grants []*models.Achievement

	if progress.OverallProgress >= 100 {
		if !holdsGlobal(existing, models.AchievementFirstCourse) {
			grants = append(grants, &models.Achievement{
				UserID:   progress.UserID,
				Type:     models.AchievementFirstCourse,
				EarnedAt: now,
			})
		}
		if !holdsForCourse(existing, models.AchievementCourseCompleted, progress.CourseID) {
			courseID := progress.CourseID
			grants = append(grants, &models.Achievement{
				UserID:   progress.UserID,
				Type:     models.AchievementCourseCompleted,
				CourseID: &courseID,
				EarnedAt: now,
			})
		}
	}

	if progress.StreakDays >= 7 && !holdsGlobal(existing, models.AchievementStreak7) {
		grants = append(grants, &models.Achievement{
			UserID:   progress.UserID,
			Type:     models.AchievementStreak7,
			EarnedAt: now,
		})
	}

	if progress.StreakDays >= 30 && !holdsGlobal(existing, models.AchievementStreak30) {
		grants = append(grants, &models.Achievement{
			UserID:   progress.UserID,
			Type:     models.AchievementStreak30,
			EarnedAt: now,
		})
	}

	return grants
}

func holdsGlobal(existing []*models.Achievement, achievementType models.AchievementType) bool {
	for _, a := range existing {
		if a.Type == achievementType && a.CourseID == nil {
			return true
		}
	}
	return false
}

func holdsForCourse(existing []*models.Achievement, achievementType models.AchievementType, courseID uint) bool {
	for _, a := range existing {
		if a.Type == achievementType && a.CourseID != nil && *a.CourseID == courseID {
			return true
		}
	}
	return false
}

// ===== SERVICE OPERATIONS =====

func (s *achievementService) CheckAndAward(ctx context.Context, progress *models.CourseProgress) []*models.Achievement {
	existing, err := s.repo.Achievement().GetByUser(ctx, progress.UserID)
	if err != nil {
		s.logger.Error("Failed to load achievements for award check",
			"user_id", progress.UserID,
			"course_id", progress.CourseID,
			"error", err)
		return nil
	}

	granted := make([]*models.Achievement, 0)
	for _, grant := range EvaluateAchievements(existing, progress, s.clock.Now()) {
		if err := s.repo.Achievement().Create(ctx, grant); err != nil {
			if repositories.IsDuplicateError(err) {
				// A concurrent request granted it first; already earned.
				continue
			}
			s.logger.Error("Failed to persist achievement grant",
				"user_id", grant.UserID,
				"type", grant.Type,
				"error", err)
			continue
		}

		granted = append(granted, grant)
		s.logger.Info("Achievement unlocked",
			"user_id", grant.UserID,
			"type", grant.Type,
			"course_id", grant.CourseID)

		event := events.NewAchievementUnlockedEvent(grant.UserID, string(grant.Type), grant.CourseID, grant.EarnedAt)
		if err := s.publisher.PublishLearningEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish achievement event",
				"user_id", grant.UserID,
				"type", grant.Type,
				"error", err)
		}
	}

	return granted
}

func (s *achievementService) ListForUser(ctx context.Context, userID string) ([]*models.Achievement, error) {
	return s.repo.Achievement().GetByUser(ctx, userID)
}
