package services

import (
	"context"
)

// InsightGenerator turns a metrics block into narrative study feedback.
// Deployments can plug an external generator behind this seam; callers must
// survive a nil or failing generator by substituting FallbackInsights.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, metrics *PerformanceMetrics) (*LearningInsights, error)
}

type LearningInsights struct {
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
	LearningPattern string   `json:"learning_pattern"`
}

// FallbackInsights derives insights purely from the numeric metrics, so the
// output is deterministic for a given metrics block. Thresholds: engagement
// 70/40, completion rate 80/50, average watch time 30/10 minutes. Every list
// comes back non-empty.
func FallbackInsights(metrics *PerformanceMetrics) *LearningInsights {
	insights := &LearningInsights{
		Strengths:       []string{},
		Improvements:    []string{},
		Recommendations: []string{},
		LearningPattern: metrics.LearningPatterns.InteractionStyle,
	}

	switch {
	case metrics.EngagementScore >= 70:
		insights.Strengths = append(insights.Strengths, "Consistently high engagement with course material")
	case metrics.EngagementScore < 40:
		insights.Improvements = append(insights.Improvements, "Engagement with course material is low")
		insights.Recommendations = append(insights.Recommendations, "Try interacting more during lessons: take notes, pause to reflect, and complete the lesson quizzes")
	}

	switch {
	case metrics.CompletionRate >= 80:
		insights.Strengths = append(insights.Strengths, "Finishes most of the videos that are started")
	case metrics.CompletionRate < 50:
		insights.Improvements = append(insights.Improvements, "Many videos are left unfinished")
		insights.Recommendations = append(insights.Recommendations, "Schedule enough time to watch lessons through to the end")
	}

	switch {
	case metrics.AverageWatchTimeMinutes >= 30:
		insights.Strengths = append(insights.Strengths, "Sustains long, focused study sessions")
	case metrics.AverageWatchTimeMinutes < 10:
		insights.Recommendations = append(insights.Recommendations, "Longer study sessions of 25-30 minutes tend to improve retention")
	}

	switch metrics.LearningPatterns.Consistency {
	case "highly_consistent", "consistent":
		insights.Strengths = append(insights.Strengths, "Studies on a regular schedule")
	case "sporadic":
		insights.Improvements = append(insights.Improvements, "Study sessions are irregular")
	}

	if len(insights.Strengths) == 0 {
		insights.Strengths = append(insights.Strengths, "Keeps making progress through the course")
	}
	if len(insights.Improvements) == 0 {
		insights.Improvements = append(insights.Improvements, "No major problem areas detected")
	}
	if len(insights.Recommendations) == 0 {
		insights.Recommendations = append(insights.Recommendations, "Keep up the current study routine")
	}

	return insights
}

// RuleBasedInsightGenerator is the built-in InsightGenerator; it simply
// applies the fallback rules.
type RuleBasedInsightGenerator struct{}

func NewRuleBasedInsightGenerator() *RuleBasedInsightGenerator {
	return &RuleBasedInsightGenerator{}
}

func (g *RuleBasedInsightGenerator) GenerateInsights(_ context.Context, metrics *PerformanceMetrics) (*LearningInsights, error) {
	return FallbackInsights(metrics), nil
}
