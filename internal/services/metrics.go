package services

import (
	"math"
	"sort"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
)

// Engagement weight per interaction kind. Unknown kinds score as "other".
var interactionWeights = map[models.InteractionKind]int{
	models.InteractionPlay:             10,
	models.InteractionPause:            5,
	models.InteractionSeek:             3,
	models.InteractionNote:             15,
	models.InteractionQuizCompleted:    20,
	models.InteractionFullscreenToggle: 5,
	models.InteractionOther:            2,
}

// Sessions with a video snapshot at or past this percentage count as
// completed for the completion rate.
const completionThresholdPercent = 90.0

// NoData marks pattern classifications and topic picks that had no sessions
// to derive from. Callers always get a concrete string, never an empty one.
const NoData = "no_data"

// ===== DATA STRUCTURES =====

// PerformanceMetrics is the derived analytics block for one learner,
// optionally scoped to a course. Scores and rates are bounded 0-100.
type PerformanceMetrics struct {
	EngagementScore         int              `json:"engagement_score"`
	CompletionRate          int              `json:"completion_rate"`
	AverageWatchTimeMinutes int              `json:"average_watch_time_minutes"`
	SessionCount            int              `json:"session_count"`
	LearningPatterns        LearningPatterns `json:"learning_patterns"`
	TopicPerformance        TopicPerformance `json:"topic_performance"`
	Timeframe               string           `json:"timeframe"`
	GeneratedAt             time.Time        `json:"generated_at"`
}

// LearningPatterns classifies study habits; values are labels, not scores.
type LearningPatterns struct {
	PreferredStudyTime string `json:"preferred_study_time"` // morning / afternoon / evening / night
	SessionLength      string `json:"session_length"`       // short / medium / long / extended
	InteractionStyle   string `json:"interaction_style"`    // note_taker / explorer / active / passive
	Consistency        string `json:"consistency"`          // highly_consistent / consistent / occasional / sporadic
}

type TopicPerformance struct {
	Topics    []TopicStat `json:"topics"`
	Strongest string      `json:"strongest"`
	Weakest   string      `json:"weakest"`
}

type TopicStat struct {
	LessonID               string `json:"lesson_id"`
	SessionCount           int    `json:"session_count"`
	AverageDurationMinutes int    `json:"average_duration_minutes"`
	AverageEngagement      int    `json:"average_engagement"`
}

// ===== CALCULATION =====

// CalculateMetrics derives the full metrics block from a session set. An
// empty set yields zeros and "no data" labels, never an error: downstream
// consumers render the block unconditionally.
func CalculateMetrics(sessions []*models.LearningSession) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		SessionCount: len(sessions),
		LearningPatterns: LearningPatterns{
			PreferredStudyTime: NoData,
			SessionLength:      NoData,
			InteractionStyle:   NoData,
			Consistency:        NoData,
		},
		TopicPerformance: TopicPerformance{
			Topics:    []TopicStat{},
			Strongest: NoData,
			Weakest:   NoData,
		},
	}
	if len(sessions) == 0 {
		return metrics
	}

	var engagementSum, durationSum float64
	completed := 0
	for _, session := range sessions {
		engagementSum += sessionEngagement(session)
		durationSum += float64(session.DurationSeconds)
		if session.VideoProgressPercent >= completionThresholdPercent {
			completed++
		}
	}

	count := float64(len(sessions))
	metrics.EngagementScore = roundToInt(engagementSum / count)
	metrics.CompletionRate = roundToInt(100 * float64(completed) / count)
	metrics.AverageWatchTimeMinutes = roundToInt(durationSum / count / 60)
	metrics.LearningPatterns = classifyPatterns(sessions)
	metrics.TopicPerformance = calculateTopicPerformance(sessions)

	return metrics
}

// sessionEngagement scores one session's interaction density on a 0-100
// scale: weighted interaction points per minute of session, times ten.
// Zero-duration sessions (still open, or instant) fall back to the raw
// weighted sum so their activity is not discarded.
func sessionEngagement(session *models.LearningSession) float64 {
	points := 0
	for _, interaction := range session.Interactions {
		if weight, ok := interactionWeights[interaction.Kind]; ok {
			points += weight
		} else {
			points += interactionWeights[models.InteractionOther]
		}
	}

	score := float64(points)
	if session.DurationSeconds > 0 {
		minutes := float64(session.DurationSeconds) / 60
		score = float64(points) / minutes * 10
	}

	return clampScore(score)
}

// ===== PATTERN CLASSIFICATION =====

func classifyPatterns(sessions []*models.LearningSession) LearningPatterns {
	return LearningPatterns{
		PreferredStudyTime: classifyStudyTime(sessions),
		SessionLength:      classifySessionLength(sessions),
		InteractionStyle:   classifyInteractionStyle(sessions),
		Consistency:        classifyConsistency(sessions),
	}
}

// classifyStudyTime picks the six-hour band holding the most session starts.
func classifyStudyTime(sessions []*models.LearningSession) string {
	counts := map[string]int{}
	for _, session := range sessions {
		counts[studyTimeBand(session.StartedAt)]++
	}

	best, bestCount := NoData, 0
	for _, band := range []string{"morning", "afternoon", "evening", "night"} {
		if counts[band] > bestCount {
			best, bestCount = band, counts[band]
		}
	}
	return best
}

func studyTimeBand(t time.Time) string {
	switch hour := t.UTC().Hour(); {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// classifySessionLength bands the average session duration in minutes:
// under 10 short, under 30 medium, under 60 long, otherwise extended.
func classifySessionLength(sessions []*models.LearningSession) string {
	var totalSeconds float64
	for _, session := range sessions {
		totalSeconds += float64(session.DurationSeconds)
	}
	averageMinutes := totalSeconds / float64(len(sessions)) / 60

	switch {
	case averageMinutes < 10:
		return "short"
	case averageMinutes < 30:
		return "medium"
	case averageMinutes < 60:
		return "long"
	default:
		return "extended"
	}
}

// classifyInteractionStyle labels the learner by interaction mix: heavy
// note-taking first, heavy seeking second, otherwise by overall volume.
func classifyInteractionStyle(sessions []*models.LearningSession) string {
	total, notes, seeks := 0, 0, 0
	for _, session := range sessions {
		for _, interaction := range session.Interactions {
			total++
			switch interaction.Kind {
			case models.InteractionNote:
				notes++
			case models.InteractionSeek:
				seeks++
			}
		}
	}
	if total == 0 {
		return "passive"
	}

	noteRatio := float64(notes) / float64(total)
	seekRatio := float64(seeks) / float64(total)
	perSession := float64(total) / float64(len(sessions))

	switch {
	case noteRatio >= 0.25:
		return "note_taker"
	case seekRatio >= 0.30:
		return "explorer"
	case perSession >= 5:
		return "active"
	default:
		return "passive"
	}
}

// classifyConsistency bands the share of calendar days in the observed span
// that had at least one session.
func classifyConsistency(sessions []*models.LearningSession) string {
	days := map[time.Time]bool{}
	first, last := sessions[0].StartedAt, sessions[0].StartedAt
	for _, session := range sessions {
		days[utils.StartOfDay(session.StartedAt)] = true
		if session.StartedAt.Before(first) {
			first = session.StartedAt
		}
		if session.StartedAt.After(last) {
			last = session.StartedAt
		}
	}

	span := utils.DaysBetween(first, last) + 1
	ratio := float64(len(days)) / float64(span)

	switch {
	case ratio >= 0.8:
		return "highly_consistent"
	case ratio >= 0.5:
		return "consistent"
	case ratio >= 0.25:
		return "occasional"
	default:
		return "sporadic"
	}
}

// ===== TOPIC PERFORMANCE =====

// calculateTopicPerformance groups sessions by lesson and surfaces the
// strongest and weakest lesson by average engagement. Ties keep the first
// lesson in identifier order, so the output is deterministic.
func calculateTopicPerformance(sessions []*models.LearningSession) TopicPerformance {
	type accumulator struct {
		count           int
		durationSeconds float64
		engagement      float64
	}
	groups := map[string]*accumulator{}
	for _, session := range sessions {
		acc := groups[session.LessonID]
		if acc == nil {
			acc = &accumulator{}
			groups[session.LessonID] = acc
		}
		acc.count++
		acc.durationSeconds += float64(session.DurationSeconds)
		acc.engagement += sessionEngagement(session)
	}

	lessonIDs := make([]string, 0, len(groups))
	for lessonID := range groups {
		lessonIDs = append(lessonIDs, lessonID)
	}
	sort.Strings(lessonIDs)

	result := TopicPerformance{
		Topics:    make([]TopicStat, 0, len(groups)),
		Strongest: NoData,
		Weakest:   NoData,
	}
	bestScore, worstScore := -1.0, -1.0
	for _, lessonID := range lessonIDs {
		acc := groups[lessonID]
		avgEngagement := acc.engagement / float64(acc.count)
		result.Topics = append(result.Topics, TopicStat{
			LessonID:               lessonID,
			SessionCount:           acc.count,
			AverageDurationMinutes: roundToInt(acc.durationSeconds / float64(acc.count) / 60),
			AverageEngagement:      roundToInt(avgEngagement),
		})

		if bestScore < 0 || avgEngagement > bestScore {
			bestScore = avgEngagement
			result.Strongest = lessonID
		}
		if worstScore < 0 || avgEngagement < worstScore {
			worstScore = avgEngagement
			result.Weakest = lessonID
		}
	}

	return result
}

// ===== SMALL HELPERS =====

func clampScore(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}

func roundToInt(value float64) int {
	return int(math.Round(value))
}
