package services

import (
	"math"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
)

// ProgressTracker applies study events to a loaded CourseProgress snapshot.
// Methods mutate the snapshot in memory and collect the child-row changes in
// a repositories.ProgressChange; persisting both atomically is the owning
// service's job. One event per load-apply-save cycle: the change descriptor
// holds pointers into the snapshot's slices and is consumed before the next
// event touches the same snapshot.
//
// All date arithmetic goes through the injected clock so tests can cross day
// and week boundaries deterministically.
type ProgressTracker struct {
	clock utils.Clock
}

func NewProgressTracker(clock utils.Clock) *ProgressTracker {
	return &ProgressTracker{clock: clock}
}

// CompletionOutcome reports what a completion event changed beyond the
// snapshot itself, so the caller knows which follow-up events to publish.
type CompletionOutcome struct {
	LessonFirstCompleted bool // lesson was not in the completed set before
	CourseJustCompleted  bool // overallProgress crossed 100 in this call
	GoalJustAchieved     bool // weekly bucket crossed the weekly-minutes goal
	WeekStart            time.Time
	WeeklyMinutes        int
}

// ===== LESSON COMPLETION =====

// CompleteLesson records one finished lesson. A first completion inserts the
// lesson record; a repeat only raises the stored quiz score (higher score
// wins, attempts increment). Watch time, streak and the weekly bucket are
// updated on every call, whether or not the lesson was new.
func (t *ProgressTracker) CompleteLesson(progress *models.CourseProgress, lessonID, sectionID string, watchTimeSeconds int, quizScore *float64, totalLessons int) (CompletionOutcome, repositories.ProgressChange) {
	now := t.clock.Now()
	var outcome CompletionOutcome
	var change repositories.ProgressChange

	existing := findCompletedLesson(progress, lessonID)
	if existing == nil {
		lesson := models.CompletedLesson{
			LessonID:         lessonID,
			SectionID:        sectionID,
			CompletedAt:      now,
			WatchTimeSeconds: watchTimeSeconds,
			QuizScore:        quizScore,
		}
		if quizScore != nil {
			lesson.QuizAttempts = 1
		}
		progress.CompletedLessons = append(progress.CompletedLessons, lesson)
		change.NewLessons = append(change.NewLessons, &progress.CompletedLessons[len(progress.CompletedLessons)-1])
		outcome.LessonFirstCompleted = true
	} else if quizScore != nil && (existing.QuizScore == nil || *quizScore > *existing.QuizScore) {
		existing.QuizScore = quizScore
		existing.QuizAttempts++
		change.UpdatedLessons = append(change.UpdatedLessons, existing)
	}

	progress.TotalWatchTimeSeconds += int64(watchTimeSeconds)

	t.updateStreak(progress, now)

	minutes := int(math.Round(float64(watchTimeSeconds) / 60.0))
	t.updateWeeklyStats(progress, &change, &outcome, minutes, now)

	t.recalculateProgress(progress, totalLessons, now, &outcome)
	progress.LastAccessedAt = now

	return outcome, change
}

// UpdateCursor overwrites the playback position unconditionally and bumps
// lastAccessedAt. No completion, streak or weekly bookkeeping happens here.
func (t *ProgressTracker) UpdateCursor(progress *models.CourseProgress, lessonID, sectionID string, positionSeconds int) {
	progress.CurrentLessonID = lessonID
	progress.CurrentSectionID = sectionID
	progress.CurrentPositionSeconds = positionSeconds
	progress.LastAccessedAt = t.clock.Now()
}

// ===== DERIVED STATE =====

// recalculateProgress refreshes the percentage from the completed set,
// capped at 100 when the catalog total shrank below the completed count. The
// stored value never decreases: a course whose catalog total later grows
// keeps the highest percentage it ever reached. Crossing 100 stamps
// completedAt exactly once.
func (t *ProgressTracker) recalculateProgress(progress *models.CourseProgress, totalLessons int, now time.Time, outcome *CompletionOutcome) {
	pct := 0
	if totalLessons > 0 {
		pct = int(math.Round(100 * float64(len(progress.CompletedLessons)) / float64(totalLessons)))
		if pct > 100 {
			pct = 100
		}
	}
	if pct > progress.OverallProgress {
		progress.OverallProgress = pct
	}
	if progress.OverallProgress >= 100 && progress.CompletedAt == nil {
		completed := now
		progress.CompletedAt = &completed
		outcome.CourseJustCompleted = true
	}
}

// updateStreak advances the consecutive-study-days counter. Same-day repeats
// leave it unchanged; a gap of more than one day resets it to one. A
// lastStreakDate in the future (clock skew between app servers) is left
// alone rather than treated as a reset.
func (t *ProgressTracker) updateStreak(progress *models.CourseProgress, now time.Time) {
	today := utils.StartOfDay(now)

	if progress.LastStreakDate == nil {
		progress.StreakDays = 1
		progress.LastStreakDate = &today
		return
	}

	switch diff := utils.DaysBetween(*progress.LastStreakDate, today); {
	case diff == 1:
		progress.StreakDays++
		progress.LastStreakDate = &today
	case diff > 1:
		progress.StreakDays = 1
		progress.LastStreakDate = &today
	}
	// diff == 0 (same day) and diff < 0 (skew) both leave the streak as-is.
}

// updateWeeklyStats folds study minutes into the bucket for the week
// containing "now" at recording time. Bucketing follows the recording clock,
// not the event's own timestamp: a lesson reported shortly after a Sunday
// midnight lands in the new week.
func (t *ProgressTracker) updateWeeklyStats(progress *models.CourseProgress, change *repositories.ProgressChange, outcome *CompletionOutcome, minutes int, now time.Time) {
	weekStart := utils.StartOfWeek(now)

	var stat *models.WeeklyStat
	for i := range progress.WeeklyStats {
		if utils.SameDay(progress.WeeklyStats[i].WeekStart, weekStart) {
			stat = &progress.WeeklyStats[i]
			break
		}
	}

	created := false
	if stat == nil {
		progress.WeeklyStats = append(progress.WeeklyStats, models.WeeklyStat{WeekStart: weekStart})
		stat = &progress.WeeklyStats[len(progress.WeeklyStats)-1]
		created = true
	}

	wasAchieved := stat.GoalAchieved
	stat.MinutesStudied += minutes
	stat.LessonsCompleted++
	stat.GoalAchieved = stat.MinutesStudied >= progress.StudyGoal.WeeklyMinutes

	if created {
		change.NewWeeklyStats = append(change.NewWeeklyStats, stat)
	} else {
		change.UpdatedWeeklyStats = append(change.UpdatedWeeklyStats, stat)
	}

	outcome.GoalJustAchieved = stat.GoalAchieved && !wasAchieved
	outcome.WeekStart = weekStart
	outcome.WeeklyMinutes = stat.MinutesStudied
}

func findCompletedLesson(progress *models.CourseProgress, lessonID string) *models.CompletedLesson {
	for i := range progress.CompletedLessons {
		if progress.CompletedLessons[i].LessonID == lessonID {
			return &progress.CompletedLessons[i]
		}
	}
	return nil
}
