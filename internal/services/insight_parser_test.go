package services

import (
	"testing"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseInsightResponse(t *testing.T) {
	t.Run("All sections", func(t *testing.T) {
		result := ParseInsightResponse(taggedResponse, "en")
		assert.Equal(t, ParseKindParsed, result.Kind)
		assert.Empty(t, result.Missing)
		assert.Equal(t, models.InsightFields{
			BusinessValue:       "Saves time",
			MarketOpportunity:   "Large",
			StartupIdeas:        "Hosted version",
			TargetAudience:      "Developers",
			CompetitionAnalysis: "Few rivals",
		}, result.Fields)
	})

	t.Run("Code fence is stripped", func(t *testing.T) {
		result := ParseInsightResponse("Here you go:\n```xml\n"+taggedResponse+"\n```", "en")
		assert.Equal(t, ParseKindParsed, result.Kind)
		assert.Equal(t, "Saves time", result.Fields.BusinessValue)
	})

	t.Run("Missing sections get language defaults", func(t *testing.T) {
		text := "<business_value>值</business_value><startup_ideas>  </startup_ideas>"
		result := ParseInsightResponse(text, "zh")
		defaults := models.SectionDefaults("zh")

		assert.Equal(t, ParseKindParsed, result.Kind)
		assert.Equal(t, "值", result.Fields.BusinessValue)
		assert.Equal(t, defaults.StartupIdeas, result.Fields.StartupIdeas)
		assert.Equal(t, defaults.CompetitionAnalysis, result.Fields.CompetitionAnalysis)
		assert.Len(t, result.Missing, 4)
	})

	t.Run("No tags falls back to raw text", func(t *testing.T) {
		result := ParseInsightResponse("  Just prose about the project.  ", "en")
		assert.Equal(t, ParseKindRawFallback, result.Kind)
		assert.Equal(t, "Just prose about the project.", result.Fields.BusinessValue)
		assert.Empty(t, result.Fields.MarketOpportunity)
	})
}

func TestBuildAnalysisPrompt(t *testing.T) {
	project := &models.Project{FullName: "acme/rocket", Description: "Fast rockets", Language: "Go", StarsCount: 42}

	en := BuildAnalysisPrompt(project, "en")
	assert.Contains(t, en, "acme/rocket")
	assert.Contains(t, en, "Fast rockets")
	assert.Contains(t, en, "Stars: 42")
	assert.Contains(t, en, "in English")
	assert.Contains(t, en, "<competition_analysis>")

	assert.Contains(t, BuildAnalysisPrompt(project, "zh"), "in Chinese")
	assert.Contains(t, BuildAnalysisPrompt(project, "fr"), `code "fr"`)
}
