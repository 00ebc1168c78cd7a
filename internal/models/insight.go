package models

import (
	"strings"
	"time"
)

// InsightStatus is the lifecycle state of an Insight
type InsightStatus string

const (
	InsightStatusPending   InsightStatus = "pending"
	InsightStatusCompleted InsightStatus = "completed"
	InsightStatusFailed    InsightStatus = "failed"
)

// AnalysisVersionFallback marks insights whose text is the raw model output
// because the tagged sections could not be extracted.
const AnalysisVersionFallback = "fallback"

// Insight is the generated business analysis of one project in one language
type Insight struct {
	ID              int64         `json:"id"`
	ProjectID       int64         `json:"project_id"`
	Language        string        `json:"language"`
	Status          InsightStatus `json:"status"`
	InsightFields                 // five analysis sections
	AnalysisVersion string        `json:"analysis_version"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	GeneratedAt     *time.Time    `json:"generated_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastUpdated     time.Time     `json:"last_updated"`
}

// InsightFields are the five text sections of an analysis
type InsightFields struct {
	BusinessValue       string `json:"business_value"`
	MarketOpportunity   string `json:"market_opportunity"`
	StartupIdeas        string `json:"startup_ideas"`
	TargetAudience      string `json:"target_audience"`
	CompetitionAnalysis string `json:"competition_analysis"`
}

// IsEmpty reports whether every section is blank
func (f InsightFields) IsEmpty() bool {
	return strings.TrimSpace(f.BusinessValue) == "" &&
		strings.TrimSpace(f.MarketOpportunity) == "" &&
		strings.TrimSpace(f.StartupIdeas) == "" &&
		strings.TrimSpace(f.TargetAudience) == "" &&
		strings.TrimSpace(f.CompetitionAnalysis) == ""
}

// FillBlank returns f with every blank section replaced by the matching one from defaults
func (f InsightFields) FillBlank(defaults InsightFields) InsightFields {
	pick := func(value, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return value
	}
	return InsightFields{
		BusinessValue:       pick(f.BusinessValue, defaults.BusinessValue),
		MarketOpportunity:   pick(f.MarketOpportunity, defaults.MarketOpportunity),
		StartupIdeas:        pick(f.StartupIdeas, defaults.StartupIdeas),
		TargetAudience:      pick(f.TargetAudience, defaults.TargetAudience),
		CompetitionAnalysis: pick(f.CompetitionAnalysis, defaults.CompetitionAnalysis),
	}
}

// CanTransition reports whether an insight may move from one status to another.
// pending -> completed|failed, failed|completed -> pending (forced regeneration).
func CanTransition(from, to InsightStatus) bool {
	switch from {
	case InsightStatusPending:
		return to == InsightStatusCompleted || to == InsightStatusFailed
	case InsightStatusFailed, InsightStatusCompleted:
		return to == InsightStatusPending
	}
	return false
}

// TransitionSources lists the statuses an insight may leave to enter to
func TransitionSources(to InsightStatus) []InsightStatus {
	var sources []InsightStatus
	for _, from := range []InsightStatus{InsightStatusPending, InsightStatusCompleted, InsightStatusFailed} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// NormalizeLanguageCode lower-cases and trims an analysis language code
func NormalizeLanguageCode(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

var sectionDefaults = map[string]InsightFields{
	"en": {
		BusinessValue:       "Unable to determine the business value of this project.",
		MarketOpportunity:   "Market opportunities need further evaluation.",
		StartupIdeas:        "No startup ideas based on this project for now.",
		TargetAudience:      "Target users need further research.",
		CompetitionAnalysis: "Competitive situation needs in-depth analysis.",
	},
	"zh": {
		BusinessValue:       "无法确定该项目的商业价值。",
		MarketOpportunity:   "市场机会需要进一步评估。",
		StartupIdeas:        "暂时没有基于该项目的创业想法。",
		TargetAudience:      "目标用户需要进一步调研。",
		CompetitionAnalysis: "竞争情况需要深入分析。",
	},
}

var failurePlaceholders = map[string]InsightFields{
	"en": {
		BusinessValue:       "Unable to analyze the business value of this project.",
		MarketOpportunity:   "Unable to evaluate market opportunities.",
		StartupIdeas:        "Unable to generate startup ideas.",
		TargetAudience:      "Unable to identify target users.",
		CompetitionAnalysis: "Unable to analyze competitive situation.",
	},
	"zh": {
		BusinessValue:       "无法分析该项目的商业价值。",
		MarketOpportunity:   "无法评估市场机会。",
		StartupIdeas:        "无法生成创业想法。",
		TargetAudience:      "无法确定目标用户。",
		CompetitionAnalysis: "无法分析竞争情况。",
	},
}

// SectionDefaults returns the text used for sections missing from a parsed response
func SectionDefaults(language string) InsightFields {
	if f, ok := sectionDefaults[NormalizeLanguageCode(language)]; ok {
		return f
	}
	return sectionDefaults["en"]
}

// FailurePlaceholders returns the text stored when generation fails
func FailurePlaceholders(language string) InsightFields {
	if f, ok := failurePlaceholders[NormalizeLanguageCode(language)]; ok {
		return f
	}
	return failurePlaceholders["en"]
}
