package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/events"
	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var progressNow = time.Date(2024, time.March, 6, 15, 0, 0, 0, time.UTC)

func newProgressServiceForTest(repo *MockRepository, clock utils.Clock) (ProgressService, *events.MockEventPublisher) {
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	achievements := NewAchievementService(repo, logger, publisher, clock)
	service := NewProgressService(repo, logger, utils.NewValidator(), NewProgressTracker(clock), achievements, publisher)
	return service, publisher
}

func progressSnapshot() *models.CourseProgress {
	return &models.CourseProgress{
		ID:        3,
		UserID:    "learner-1",
		CourseID:  7,
		StudyGoal: models.DefaultStudyGoal(),
		Version:   4,
	}
}

func TestProgressService_CompleteLesson_CompletesCourse(t *testing.T) {
	repo := newMockRepository()
	service, publisher := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	yesterday := utils.StartOfDay(progressNow).AddDate(0, 0, -1)
	snapshot := progressSnapshot()
	snapshot.OverallProgress = 50
	snapshot.TotalWatchTimeSeconds = 300
	snapshot.StreakDays = 2
	snapshot.LastStreakDate = &yesterday
	snapshot.CompletedLessons = []models.CompletedLesson{
		{ID: 1, ProgressID: 3, LessonID: "lesson-1", QuizScore: floatPtr(80), QuizAttempts: 1},
	}

	repo.course.On("TotalLessons", mock.Anything, uint(7)).Return(2, nil)
	repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(snapshot, nil)
	repo.progress.On("Save", mock.Anything, mock.MatchedBy(func(p *models.CourseProgress) bool {
		return p.OverallProgress == 100 && p.CompletedAt != nil
	}), mock.Anything).Return(nil)
	repo.achievement.On("GetByUser", mock.Anything, "learner-1").Return([]*models.Achievement{}, nil)
	repo.achievement.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := service.CompleteLesson(context.Background(), "learner-1", 7, "lesson-2", &CompleteLessonRequest{
		WatchTimeSeconds: 600,
		QuizScore:        floatPtr(90),
	})

	require.NoError(t, err)
	assert.Equal(t, 100, result.OverallProgress)
	assert.Equal(t, 2, result.CompletedLessonsCount)
	assert.Equal(t, 3, result.StreakDays)
	assert.True(t, result.CourseCompleted)

	require.Len(t, result.NewAchievements, 2)
	assert.Equal(t, models.AchievementFirstCourse, result.NewAchievements[0].Type)
	assert.Equal(t, models.AchievementCourseCompleted, result.NewAchievements[1].Type)

	// Achievement grants publish first (inside the award check), then the
	// lesson and course events.
	published := publisher.GetPublishedEvents()
	require.Len(t, published, 4)
	assert.Equal(t, events.EventAchievementUnlocked, published[0].Type)
	assert.Equal(t, events.EventAchievementUnlocked, published[1].Type)
	assert.Equal(t, events.EventLessonCompleted, published[2].Type)
	assert.Equal(t, events.EventCourseCompleted, published[3].Type)

	payload, ok := published[2].Data.(events.LessonCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "lesson-2", payload.LessonID)
	assert.Equal(t, 100, payload.OverallProgress)
	assert.Equal(t, 3, payload.StreakDays)

	repo.progress.AssertExpectations(t)
}

func TestProgressService_CompleteLesson_RetriesOnVersionConflict(t *testing.T) {
	repo := newMockRepository()
	service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	first := progressSnapshot()
	second := progressSnapshot()
	second.Version = 5

	repo.course.On("TotalLessons", mock.Anything, uint(7)).Return(10, nil)
	repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(first, nil).Once()
	repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(second, nil).Once()
	repo.progress.On("Save", mock.Anything, first, mock.Anything).Return(repositories.ErrVersionConflict).Once()
	repo.progress.On("Save", mock.Anything, second, mock.Anything).Return(nil).Once()
	repo.achievement.On("GetByUser", mock.Anything, "learner-1").Return([]*models.Achievement{}, nil)

	result, err := service.CompleteLesson(context.Background(), "learner-1", 7, "lesson-1", &CompleteLessonRequest{
		WatchTimeSeconds: 60,
	})

	require.NoError(t, err)
	assert.Equal(t, 10, result.OverallProgress)
	assert.Equal(t, 1, result.CompletedLessonsCount)
	repo.progress.AssertNumberOfCalls(t, "GetOrCreate", 2)
	repo.progress.AssertNumberOfCalls(t, "Save", 2)
	repo.progress.AssertExpectations(t)
}

func TestProgressService_CompleteLesson_GivesUpAfterMaxConflicts(t *testing.T) {
	repo := newMockRepository()
	service, publisher := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	repo.course.On("TotalLessons", mock.Anything, uint(7)).Return(10, nil)
	for i := 0; i < maxSaveAttempts; i++ {
		repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(progressSnapshot(), nil).Once()
	}
	repo.progress.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(repositories.ErrVersionConflict)

	result, err := service.CompleteLesson(context.Background(), "learner-1", 7, "lesson-1", &CompleteLessonRequest{
		WatchTimeSeconds: 60,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrProgressConflict)
	repo.progress.AssertNumberOfCalls(t, "Save", maxSaveAttempts)

	// A failed completion must not award badges or publish events.
	repo.achievement.AssertNotCalled(t, "GetByUser", mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestProgressService_CompleteLesson_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		lessonID string
		req      *CompleteLessonRequest
	}{
		{"missing lesson id", "", &CompleteLessonRequest{WatchTimeSeconds: 60}},
		{"negative watch time", "lesson-1", &CompleteLessonRequest{WatchTimeSeconds: -5}},
		{"quiz score out of range", "lesson-1", &CompleteLessonRequest{WatchTimeSeconds: 60, QuizScore: floatPtr(150)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

			result, err := service.CompleteLesson(context.Background(), "learner-1", 7, tt.lessonID, tt.req)

			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			repo.course.AssertNotCalled(t, "TotalLessons", mock.Anything, mock.Anything)
		})
	}
}

func TestProgressService_CompleteLesson_CourseLookupFails(t *testing.T) {
	repo := newMockRepository()
	service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	repo.course.On("TotalLessons", mock.Anything, uint(7)).Return(0, errors.New("catalog offline"))

	result, err := service.CompleteLesson(context.Background(), "learner-1", 7, "lesson-1", &CompleteLessonRequest{
		WatchTimeSeconds: 60,
	})

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "failed to resolve course lesson count")
	repo.progress.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProgressService_UpdatePosition(t *testing.T) {
	repo := newMockRepository()
	service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(progressSnapshot(), nil)
	repo.progress.On("UpdateCursor", mock.Anything, uint(3), "lesson-2", "section-1", 125, progressNow).Return(nil)

	result, err := service.UpdatePosition(context.Background(), "learner-1", 7, &UpdatePositionRequest{
		LessonID:        "lesson-2",
		SectionID:       "section-1",
		PositionSeconds: 125,
	})

	require.NoError(t, err)
	assert.Equal(t, "lesson-2", result.CurrentLessonID)
	assert.Equal(t, "section-1", result.CurrentSectionID)
	assert.Equal(t, 125, result.CurrentPositionSeconds)
	assert.Equal(t, progressNow, result.LastAccessedAt)

	// Cursor writes bypass the version-checked save.
	repo.progress.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	repo.progress.AssertExpectations(t)
}

func TestProgressService_UpdatePosition_RequiresLesson(t *testing.T) {
	repo := newMockRepository()
	service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	result, err := service.UpdatePosition(context.Background(), "learner-1", 7, &UpdatePositionRequest{
		PositionSeconds: 125,
	})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	repo.progress.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProgressService_AddNote(t *testing.T) {
	t.Run("appends note to the progress row", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(progressSnapshot(), nil)
		repo.progress.On("AddNote", mock.Anything, mock.MatchedBy(func(note *models.Note) bool {
			return note.ProgressID == 3 && note.LessonID == "lesson-1" && note.Content == "key formula at 02:05"
		})).Return(nil)

		note, err := service.AddNote(context.Background(), "learner-1", 7, &AddNoteRequest{
			LessonID:         "lesson-1",
			Content:          "key formula at 02:05",
			TimestampSeconds: 125,
			AIGenerated:      true,
		})

		require.NoError(t, err)
		assert.Equal(t, uint(3), note.ProgressID)
		assert.Equal(t, 125, note.TimestampSeconds)
		assert.True(t, note.AIGenerated)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		note, err := service.AddNote(context.Background(), "learner-1", 7, &AddNoteRequest{
			LessonID: "lesson-1",
		})

		assert.Nil(t, note)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		repo.progress.AssertNotCalled(t, "AddNote", mock.Anything, mock.Anything)
	})
}

func TestProgressService_AddBookmark(t *testing.T) {
	t.Run("appends bookmark to the progress row", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(progressSnapshot(), nil)
		repo.progress.On("AddBookmark", mock.Anything, mock.MatchedBy(func(bookmark *models.Bookmark) bool {
			return bookmark.ProgressID == 3 && bookmark.Title == "Proof sketch"
		})).Return(nil)

		bookmark, err := service.AddBookmark(context.Background(), "learner-1", 7, &AddBookmarkRequest{
			LessonID:         "lesson-1",
			Title:            "Proof sketch",
			TimestampSeconds: 340,
		})

		require.NoError(t, err)
		assert.Equal(t, uint(3), bookmark.ProgressID)
		assert.Equal(t, 340, bookmark.TimestampSeconds)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		bookmark, err := service.AddBookmark(context.Background(), "learner-1", 7, &AddBookmarkRequest{
			LessonID: "lesson-1",
		})

		assert.Nil(t, bookmark)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestProgressService_UpdateStudyGoal(t *testing.T) {
	t.Run("stores the new goal", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		repo.progress.On("GetOrCreate", mock.Anything, "learner-1", uint(7)).Return(progressSnapshot(), nil)
		repo.progress.On("UpdateStudyGoal", mock.Anything, uint(3), models.StudyGoal{DailyMinutes: 60, WeeklyMinutes: 300}).Return(nil)

		goal, err := service.UpdateStudyGoal(context.Background(), "learner-1", 7, &UpdateStudyGoalRequest{
			DailyMinutes:  60,
			WeeklyMinutes: 300,
		})

		require.NoError(t, err)
		assert.Equal(t, 60, goal.DailyMinutes)
		assert.Equal(t, 300, goal.WeeklyMinutes)
	})

	t.Run("rejects a weekly goal below the floor", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		goal, err := service.UpdateStudyGoal(context.Background(), "learner-1", 7, &UpdateStudyGoalRequest{
			DailyMinutes:  60,
			WeeklyMinutes: 5,
		})

		assert.Nil(t, goal)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		repo.progress.AssertNotCalled(t, "UpdateStudyGoal", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProgressService_GetCourseProgress(t *testing.T) {
	t.Run("returns the detailed row", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		snapshot := progressSnapshot()
		repo.progress.On("GetWithDetails", mock.Anything, "learner-1", uint(7)).Return(snapshot, nil)

		progress, err := service.GetCourseProgress(context.Background(), "learner-1", 7)

		require.NoError(t, err)
		assert.Same(t, snapshot, progress)
	})

	t.Run("maps missing rows to the domain error", func(t *testing.T) {
		repo := newMockRepository()
		service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

		repo.progress.On("GetWithDetails", mock.Anything, "learner-1", uint(7)).Return(nil, gorm.ErrRecordNotFound)

		progress, err := service.GetCourseProgress(context.Background(), "learner-1", 7)

		assert.Nil(t, progress)
		assert.ErrorIs(t, err, ErrProgressNotFound)
	})
}

func TestProgressService_GetSummary(t *testing.T) {
	repo := newMockRepository()
	service, _ := newProgressServiceForTest(repo, utils.FixedClock{Instant: progressNow})

	stats := &repositories.LearnerStats{
		CoursesTracked:    2,
		CoursesCompleted:  1,
		LessonsCompleted:  14,
		BestCurrentStreak: 6,
	}
	courses := []*models.CourseProgress{progressSnapshot()}
	filters := repositories.ProgressFilters{Limit: 20, SortBy: "last_accessed_at", SortOrder: "desc"}

	repo.progress.On("GetLearnerStats", mock.Anything, "learner-1").Return(stats, nil)
	repo.progress.On("ListByUser", mock.Anything, "learner-1", filters).Return(courses, int64(2), nil)

	summary, err := service.GetSummary(context.Background(), "learner-1", filters)

	require.NoError(t, err)
	assert.Same(t, stats, summary.Stats)
	assert.Equal(t, courses, summary.Courses)
	assert.Equal(t, int64(2), summary.Total)
}
