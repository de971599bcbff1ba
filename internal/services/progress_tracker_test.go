package services

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackerNow is a Wednesday; its week bucket starts Sunday March 3.
var trackerNow = time.Date(2024, time.March, 6, 15, 30, 0, 0, time.UTC)

func trackerAt(instant time.Time) *ProgressTracker {
	return NewProgressTracker(utils.FixedClock{Instant: instant})
}

func baseProgress() *models.CourseProgress {
	return &models.CourseProgress{
		ID:        1,
		UserID:    "learner-1",
		CourseID:  7,
		StudyGoal: models.DefaultStudyGoal(),
		Version:   1,
	}
}

func TestProgressTracker_FirstCompletion(t *testing.T) {
	progress := baseProgress()

	outcome, change := trackerAt(trackerNow).CompleteLesson(progress, "lesson-1", "section-1", 300, nil, 10)

	assert.True(t, outcome.LessonFirstCompleted)
	assert.False(t, outcome.CourseJustCompleted)

	require.Len(t, progress.CompletedLessons, 1)
	lesson := progress.CompletedLessons[0]
	assert.Equal(t, "lesson-1", lesson.LessonID)
	assert.Equal(t, "section-1", lesson.SectionID)
	assert.Equal(t, 300, lesson.WatchTimeSeconds)
	assert.Nil(t, lesson.QuizScore)
	assert.Equal(t, 0, lesson.QuizAttempts)
	assert.Equal(t, trackerNow, lesson.CompletedAt)

	assert.Equal(t, 10, progress.OverallProgress)
	assert.Equal(t, int64(300), progress.TotalWatchTimeSeconds)
	assert.Equal(t, 1, progress.StreakDays)
	require.NotNil(t, progress.LastStreakDate)
	assert.Equal(t, utils.StartOfDay(trackerNow), *progress.LastStreakDate)
	assert.Equal(t, trackerNow, progress.LastAccessedAt)

	require.Len(t, progress.WeeklyStats, 1)
	week := progress.WeeklyStats[0]
	assert.Equal(t, time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), week.WeekStart)
	assert.Equal(t, 5, week.MinutesStudied)
	assert.Equal(t, 1, week.LessonsCompleted)
	assert.False(t, week.GoalAchieved)

	require.Len(t, change.NewLessons, 1)
	assert.Same(t, &progress.CompletedLessons[0], change.NewLessons[0])
	assert.Empty(t, change.UpdatedLessons)
	assert.Len(t, change.NewWeeklyStats, 1)
	assert.Empty(t, change.UpdatedWeeklyStats)
}

func TestProgressTracker_QuizScoreUpdates(t *testing.T) {
	tests := []struct {
		name           string
		storedScore    *float64
		storedAttempts int
		newScore       *float64
		wantScore      *float64
		wantAttempts   int
		wantUpdated    bool
	}{
		{"higher score replaces stored", floatPtr(80), 1, floatPtr(95), floatPtr(95), 2, true},
		{"lower score keeps stored", floatPtr(80), 1, floatPtr(70), floatPtr(80), 1, false},
		{"equal score keeps stored", floatPtr(80), 1, floatPtr(80), floatPtr(80), 1, false},
		{"first score on lesson without one", nil, 0, floatPtr(55), floatPtr(55), 1, true},
		{"no score leaves lesson untouched", floatPtr(80), 1, nil, floatPtr(80), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := baseProgress()
			progress.CompletedLessons = []models.CompletedLesson{{
				LessonID:         "lesson-1",
				CompletedAt:      trackerNow.Add(-24 * time.Hour),
				WatchTimeSeconds: 300,
				QuizScore:        tt.storedScore,
				QuizAttempts:     tt.storedAttempts,
			}}

			outcome, change := trackerAt(trackerNow).CompleteLesson(progress, "lesson-1", "", 120, tt.newScore, 10)

			assert.False(t, outcome.LessonFirstCompleted)
			require.Len(t, progress.CompletedLessons, 1)
			lesson := progress.CompletedLessons[0]
			if tt.wantScore == nil {
				assert.Nil(t, lesson.QuizScore)
			} else {
				require.NotNil(t, lesson.QuizScore)
				assert.Equal(t, *tt.wantScore, *lesson.QuizScore)
			}
			assert.Equal(t, tt.wantAttempts, lesson.QuizAttempts)

			assert.Empty(t, change.NewLessons)
			if tt.wantUpdated {
				assert.Len(t, change.UpdatedLessons, 1)
			} else {
				assert.Empty(t, change.UpdatedLessons)
			}

			// Watch time accrues on repeats whether or not the score moved.
			assert.Equal(t, int64(120), progress.TotalWatchTimeSeconds)
		})
	}
}

func TestProgressTracker_StreakTransitions(t *testing.T) {
	today := utils.StartOfDay(trackerNow)
	yesterday := today.AddDate(0, 0, -1)
	threeDaysAgo := today.AddDate(0, 0, -3)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		name           string
		lastStreakDate *time.Time
		streakDays     int
		wantStreak     int
		wantDate       time.Time
	}{
		{"first study day starts at one", nil, 0, 1, today},
		{"consecutive day increments", &yesterday, 3, 4, today},
		{"gap resets to one", &threeDaysAgo, 5, 1, today},
		{"same day repeat is a no-op", &today, 3, 3, today},
		{"future date from clock skew is left alone", &tomorrow, 3, 3, tomorrow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := baseProgress()
			progress.StreakDays = tt.streakDays
			progress.LastStreakDate = tt.lastStreakDate

			trackerAt(trackerNow).CompleteLesson(progress, "lesson-1", "", 60, nil, 10)

			assert.Equal(t, tt.wantStreak, progress.StreakDays)
			require.NotNil(t, progress.LastStreakDate)
			assert.Equal(t, tt.wantDate, *progress.LastStreakDate)
		})
	}
}

func TestProgressTracker_CourseCompletion(t *testing.T) {
	progress := baseProgress()
	tracker := trackerAt(trackerNow)

	outcome, _ := tracker.CompleteLesson(progress, "lesson-1", "", 300, nil, 2)
	assert.Equal(t, 50, progress.OverallProgress)
	assert.False(t, outcome.CourseJustCompleted)
	assert.Nil(t, progress.CompletedAt)

	outcome, _ = tracker.CompleteLesson(progress, "lesson-2", "", 300, nil, 2)
	assert.Equal(t, 100, progress.OverallProgress)
	assert.True(t, outcome.CourseJustCompleted)
	require.NotNil(t, progress.CompletedAt)
	assert.Equal(t, trackerNow, *progress.CompletedAt)

	// A further completion keeps the original stamp and the 100 cap, even
	// though more lessons are done than the catalog now counts.
	completedAt := *progress.CompletedAt
	outcome, _ = tracker.CompleteLesson(progress, "lesson-3", "", 300, nil, 2)
	assert.False(t, outcome.CourseJustCompleted)
	assert.Equal(t, completedAt, *progress.CompletedAt)
	assert.Equal(t, 100, progress.OverallProgress)
}

func TestProgressTracker_ProgressNeverDecreases(t *testing.T) {
	// Catalog grew from 2 to 10 lessons after the learner reached 50%.
	progress := baseProgress()
	progress.OverallProgress = 50
	progress.CompletedLessons = []models.CompletedLesson{{LessonID: "lesson-1"}}

	outcome, _ := trackerAt(trackerNow).CompleteLesson(progress, "lesson-2", "", 60, nil, 10)

	// 2 of 10 would be 20%, below the stored 50%.
	assert.Equal(t, 50, progress.OverallProgress)
	assert.False(t, outcome.CourseJustCompleted)
}

func TestProgressTracker_ZeroTotalLessons(t *testing.T) {
	progress := baseProgress()

	outcome, _ := trackerAt(trackerNow).CompleteLesson(progress, "lesson-1", "", 60, nil, 0)

	assert.Equal(t, 0, progress.OverallProgress)
	assert.Nil(t, progress.CompletedAt)
	assert.False(t, outcome.CourseJustCompleted)
	// The lesson itself is still recorded.
	assert.Len(t, progress.CompletedLessons, 1)
}

func TestProgressTracker_WeeklyBuckets(t *testing.T) {
	wednesday := time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)
	friday := time.Date(2024, time.March, 8, 20, 0, 0, 0, time.UTC)
	nextTuesday := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)

	progress := baseProgress()
	progress.StudyGoal = models.StudyGoal{DailyMinutes: 30, WeeklyMinutes: 10}

	outcome, change := trackerAt(wednesday).CompleteLesson(progress, "lesson-1", "", 360, nil, 10)
	require.Len(t, progress.WeeklyStats, 1)
	assert.Equal(t, time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), progress.WeeklyStats[0].WeekStart)
	assert.Equal(t, 6, progress.WeeklyStats[0].MinutesStudied)
	assert.False(t, outcome.GoalJustAchieved)
	assert.Len(t, change.NewWeeklyStats, 1)

	// Same week lands in the same bucket; crossing the goal announces once.
	outcome, change = trackerAt(friday).CompleteLesson(progress, "lesson-2", "", 300, nil, 10)
	require.Len(t, progress.WeeklyStats, 1)
	assert.Equal(t, 11, progress.WeeklyStats[0].MinutesStudied)
	assert.Equal(t, 2, progress.WeeklyStats[0].LessonsCompleted)
	assert.True(t, progress.WeeklyStats[0].GoalAchieved)
	assert.True(t, outcome.GoalJustAchieved)
	assert.Equal(t, 11, outcome.WeeklyMinutes)
	assert.Empty(t, change.NewWeeklyStats)
	assert.Len(t, change.UpdatedWeeklyStats, 1)

	// Once achieved, further study does not re-announce the goal.
	outcome, _ = trackerAt(friday).CompleteLesson(progress, "lesson-3", "", 300, nil, 10)
	assert.False(t, outcome.GoalJustAchieved)
	assert.True(t, progress.WeeklyStats[0].GoalAchieved)

	// A new week opens a fresh bucket.
	outcome, change = trackerAt(nextTuesday).CompleteLesson(progress, "lesson-4", "", 60, nil, 10)
	require.Len(t, progress.WeeklyStats, 2)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), progress.WeeklyStats[1].WeekStart)
	assert.Equal(t, 1, progress.WeeklyStats[1].MinutesStudied)
	assert.False(t, progress.WeeklyStats[1].GoalAchieved)
	assert.Equal(t, progress.WeeklyStats[1].WeekStart, outcome.WeekStart)
	assert.Len(t, change.NewWeeklyStats, 1)
}

func TestProgressTracker_MinutesRounding(t *testing.T) {
	tests := []struct {
		name         string
		watchSeconds int
		wantMinutes  int
	}{
		{"under half a minute rounds down", 29, 0},
		{"half a minute rounds up", 30, 1},
		{"ninety seconds rounds up", 90, 2},
		{"full minutes stay exact", 300, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := baseProgress()
			trackerAt(trackerNow).CompleteLesson(progress, "lesson-1", "", tt.watchSeconds, nil, 10)

			require.Len(t, progress.WeeklyStats, 1)
			assert.Equal(t, tt.wantMinutes, progress.WeeklyStats[0].MinutesStudied)
		})
	}
}

func TestProgressTracker_UpdateCursor(t *testing.T) {
	progress := baseProgress()
	progress.StreakDays = 4

	trackerAt(trackerNow).UpdateCursor(progress, "lesson-3", "section-2", 145)

	assert.Equal(t, "lesson-3", progress.CurrentLessonID)
	assert.Equal(t, "section-2", progress.CurrentSectionID)
	assert.Equal(t, 145, progress.CurrentPositionSeconds)
	assert.Equal(t, trackerNow, progress.LastAccessedAt)

	// Cursor moves do not touch streak or weekly bookkeeping.
	assert.Equal(t, 4, progress.StreakDays)
	assert.Empty(t, progress.WeeklyStats)
}
