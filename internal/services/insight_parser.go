package services

import (
	"regexp"
	"strings"

	"github.com/alimgiray/ideabase/internal/models"
)

// ParseKind tells how a model response was turned into insight fields
type ParseKind int

const (
	// ParseKindParsed means at least one tagged section was found
	ParseKindParsed ParseKind = iota
	// ParseKindRawFallback means no section was found and the raw text was kept
	ParseKindRawFallback
)

func (k ParseKind) String() string {
	if k == ParseKindRawFallback {
		return "raw_fallback"
	}
	return "parsed"
}

// ParseResult is the outcome of parsing one model response
type ParseResult struct {
	Kind   ParseKind
	Fields models.InsightFields
	// Missing lists the tags that were absent and filled with defaults
	Missing []string
}

var (
	codeFencePattern = regexp.MustCompile("```(?:xml)?\\s*([\\s\\S]*?)\\s*```")
	sectionPatterns  = map[string]*regexp.Regexp{}
	sectionOrder     = []string{
		"business_value",
		"market_opportunity",
		"startup_ideas",
		"target_audience",
		"competition_analysis",
	}
)

func init() {
	for _, tag := range sectionOrder {
		sectionPatterns[tag] = regexp.MustCompile(`<` + tag + `>([\s\S]*?)</` + tag + `>`)
	}
}

// ParseInsightResponse extracts the five tagged sections from text. Missing
// sections get the language's default text; when none is present the raw
// text becomes the business value.
func ParseInsightResponse(text, language string) ParseResult {
	cleaned := strings.TrimSpace(text)
	if match := codeFencePattern.FindStringSubmatch(cleaned); match != nil {
		cleaned = strings.TrimSpace(match[1])
	}

	found := make(map[string]string, len(sectionOrder))
	for _, tag := range sectionOrder {
		if match := sectionPatterns[tag].FindStringSubmatch(cleaned); match != nil {
			if content := strings.TrimSpace(match[1]); content != "" {
				found[tag] = content
			}
		}
	}

	if len(found) == 0 {
		return ParseResult{
			Kind:   ParseKindRawFallback,
			Fields: models.InsightFields{BusinessValue: strings.TrimSpace(text)},
		}
	}

	parsed := models.InsightFields{
		BusinessValue:       found["business_value"],
		MarketOpportunity:   found["market_opportunity"],
		StartupIdeas:        found["startup_ideas"],
		TargetAudience:      found["target_audience"],
		CompetitionAnalysis: found["competition_analysis"],
	}
	result := ParseResult{
		Kind:   ParseKindParsed,
		Fields: parsed.FillBlank(models.SectionDefaults(language)),
	}
	for _, tag := range sectionOrder {
		if _, ok := found[tag]; !ok {
			result.Missing = append(result.Missing, tag)
		}
	}
	return result
}
