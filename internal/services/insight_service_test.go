package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insightMetrics(engagement, completion, watchMinutes int, consistency, style string) *PerformanceMetrics {
	return &PerformanceMetrics{
		EngagementScore:         engagement,
		CompletionRate:          completion,
		AverageWatchTimeMinutes: watchMinutes,
		LearningPatterns: LearningPatterns{
			Consistency:      consistency,
			InteractionStyle: style,
		},
	}
}

func TestFallbackInsights_StrongLearner(t *testing.T) {
	insights := FallbackInsights(insightMetrics(85, 90, 45, "highly_consistent", "note_taker"))

	assert.Equal(t, []string{
		"Consistently high engagement with course material",
		"Finishes most of the videos that are started",
		"Sustains long, focused study sessions",
		"Studies on a regular schedule",
	}, insights.Strengths)
	assert.Equal(t, []string{"No major problem areas detected"}, insights.Improvements)
	assert.Equal(t, []string{"Keep up the current study routine"}, insights.Recommendations)
	assert.Equal(t, "note_taker", insights.LearningPattern)
}

func TestFallbackInsights_StrugglingLearner(t *testing.T) {
	insights := FallbackInsights(insightMetrics(30, 40, 5, "sporadic", "passive"))

	assert.Equal(t, []string{"Keeps making progress through the course"}, insights.Strengths)
	assert.Equal(t, []string{
		"Engagement with course material is low",
		"Many videos are left unfinished",
		"Study sessions are irregular",
	}, insights.Improvements)
	require.Len(t, insights.Recommendations, 3)
}

func TestFallbackInsights_MiddleGroundFillers(t *testing.T) {
	insights := FallbackInsights(insightMetrics(50, 60, 15, "occasional", "passive"))

	assert.Equal(t, []string{"Keeps making progress through the course"}, insights.Strengths)
	assert.Equal(t, []string{"No major problem areas detected"}, insights.Improvements)
	assert.Equal(t, []string{"Keep up the current study routine"}, insights.Recommendations)
}

func TestFallbackInsights_Boundaries(t *testing.T) {
	t.Run("engagement of exactly seventy is a strength", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(70, 60, 15, "occasional", "passive"))
		assert.Contains(t, insights.Strengths, "Consistently high engagement with course material")
	})

	t.Run("engagement of forty is neutral", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(40, 60, 15, "occasional", "passive"))
		assert.NotContains(t, insights.Strengths, "Consistently high engagement with course material")
		assert.NotContains(t, insights.Improvements, "Engagement with course material is low")
	})

	t.Run("engagement below forty needs work", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(39, 60, 15, "occasional", "passive"))
		assert.Contains(t, insights.Improvements, "Engagement with course material is low")
	})

	t.Run("completion of exactly eighty is a strength", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(50, 80, 15, "occasional", "passive"))
		assert.Contains(t, insights.Strengths, "Finishes most of the videos that are started")
	})

	t.Run("completion below fifty needs work", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(50, 49, 15, "occasional", "passive"))
		assert.Contains(t, insights.Improvements, "Many videos are left unfinished")
	})

	t.Run("thirty minute average is a strength", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(50, 60, 30, "occasional", "passive"))
		assert.Contains(t, insights.Strengths, "Sustains long, focused study sessions")
	})

	t.Run("short sessions earn a pacing recommendation", func(t *testing.T) {
		insights := FallbackInsights(insightMetrics(50, 60, 9, "occasional", "passive"))
		assert.Contains(t, insights.Recommendations, "Longer study sessions of 25-30 minutes tend to improve retention")
	})
}

func TestFallbackInsights_NeverEmpty(t *testing.T) {
	blocks := []*PerformanceMetrics{
		insightMetrics(0, 0, 0, NoData, NoData),
		insightMetrics(100, 100, 100, "highly_consistent", "active"),
		insightMetrics(55, 65, 20, "consistent", "explorer"),
	}

	for _, metrics := range blocks {
		insights := FallbackInsights(metrics)
		assert.NotEmpty(t, insights.Strengths)
		assert.NotEmpty(t, insights.Improvements)
		assert.NotEmpty(t, insights.Recommendations)
		assert.Equal(t, metrics.LearningPatterns.InteractionStyle, insights.LearningPattern)
	}
}

func TestRuleBasedInsightGenerator(t *testing.T) {
	metrics := insightMetrics(85, 90, 45, "highly_consistent", "note_taker")
	generator := NewRuleBasedInsightGenerator()

	insights, err := generator.GenerateInsights(context.Background(), metrics)

	require.NoError(t, err)
	assert.Equal(t, FallbackInsights(metrics), insights)
}
