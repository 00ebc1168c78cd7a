package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/pkg/llm"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/sirupsen/logrus"
)

const analysisSystemPrompt = "You are a professional startup advisor and technical analyst, specializing in discovering the business value and startup opportunities of technical projects."

// Generator produces text for a system and user prompt
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// InsightStore is the subset of the insight repository the engine writes through
type InsightStore interface {
	GetOrMarkPending(ctx context.Context, projectID int64, language string) (*models.Insight, bool, error)
	Get(ctx context.Context, projectID int64, language string) (*models.Insight, error)
	Reopen(ctx context.Context, projectID int64, language string) error
	Complete(ctx context.Context, projectID int64, language string, fields models.InsightFields, version string) error
	Fail(ctx context.Context, projectID int64, language, reason string) error
}

type AnalyzeOptions struct {
	// Force regenerates a completed insight
	Force bool
}

// AnalysisEngine turns a project into a stored insight for one output language
type AnalysisEngine struct {
	store     InsightStore
	generator Generator
	version   string
	timeout   time.Duration
}

// NewAnalysisEngine creates an engine. version is recorded on every parsed insight,
// normally the model name.
func NewAnalysisEngine(store InsightStore, generator Generator, version string, timeout time.Duration) *AnalysisEngine {
	return &AnalysisEngine{
		store:     store,
		generator: generator,
		version:   version,
		timeout:   timeout,
	}
}

// Analyze returns the insight for (project, language), generating it unless a
// completed one exists and opts.Force is false. Backend failures are stored as
// a failed insight and returned without error; only configuration problems,
// storage failures and cancellation surface as errors.
func (e *AnalysisEngine) Analyze(ctx context.Context, project *models.Project, language string, opts AnalyzeOptions) (*models.Insight, error) {
	language = models.NormalizeLanguageCode(language)
	if language == "" {
		return nil, &models.ValidationError{Field: "language", Message: "Analysis language is required"}
	}

	log := logger.WithFields(logrus.Fields{
		"component": "analysis",
		"project":   project.FullName,
		"language":  language,
	})

	insight, created, err := e.store.GetOrMarkPending(ctx, project.ID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to load insight: %w", err)
	}

	if !created {
		switch insight.Status {
		case models.InsightStatusCompleted:
			if !opts.Force {
				log.Debug("Insight already completed, skipping generation")
				return insight, nil
			}
			if err := e.store.Reopen(ctx, project.ID, language); err != nil {
				return nil, fmt.Errorf("failed to reopen insight: %w", err)
			}
		case models.InsightStatusFailed:
			if err := e.store.Reopen(ctx, project.ID, language); err != nil {
				return nil, fmt.Errorf("failed to reopen insight: %w", err)
			}
		}
	}

	text, err := e.generate(ctx, BuildAnalysisPrompt(project, language))
	if err != nil {
		if errors.Is(err, llm.ErrConfiguration) {
			return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		if ctx.Err() != nil {
			// shutting down; the row stays pending and the job is picked up again
			return nil, ctx.Err()
		}
		genErr := classifyGenerationError(err)
		log.WithError(genErr).Warn("Insight generation failed")
		return e.fail(ctx, project.ID, language, genErr)
	}

	result := ParseInsightResponse(text, language)
	version := e.version
	if result.Kind == ParseKindRawFallback {
		if strings.TrimSpace(result.Fields.BusinessValue) == "" {
			return e.fail(ctx, project.ID, language, &models.GenerationError{
				Category: models.GenerationMalformedResponse,
				Err:      errors.New("response has no usable text"),
			})
		}
		version = models.AnalysisVersionFallback
		log.Warn("Response had no tagged sections, storing raw text")
	} else if len(result.Missing) > 0 {
		log.WithField("missing", result.Missing).Info("Response missing sections, using defaults")
	}

	if err := e.store.Complete(ctx, project.ID, language, result.Fields, version); err != nil {
		// another worker may have finished the same key first
		if current, getErr := e.store.Get(ctx, project.ID, language); getErr == nil && current.Status == models.InsightStatusCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("failed to store insight: %w", err)
	}

	log.WithField("version", version).Info("Insight generated")
	return e.store.Get(ctx, project.ID, language)
}

func (e *AnalysisEngine) generate(ctx context.Context, prompt string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.generator.Complete(ctx, analysisSystemPrompt, prompt)
}

func (e *AnalysisEngine) fail(ctx context.Context, projectID int64, language string, genErr *models.GenerationError) (*models.Insight, error) {
	if err := e.store.Fail(ctx, projectID, language, genErr.Category+": "+genErr.Err.Error()); err != nil {
		if current, getErr := e.store.Get(ctx, projectID, language); getErr == nil && current.Status == models.InsightStatusCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("failed to record insight failure: %w", err)
	}
	return e.store.Get(ctx, projectID, language)
}

func classifyGenerationError(err error) *models.GenerationError {
	category := models.GenerationBackendError

	var statusErr *llm.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		category = models.GenerationTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		category = models.GenerationTimeout
	case errors.As(err, &statusErr) && statusErr.RateLimited():
		category = models.GenerationRateLimited
	case errors.Is(err, llm.ErrEmptyContent):
		category = models.GenerationMalformedResponse
	}
	return &models.GenerationError{Category: category, Err: err}
}

// BuildAnalysisPrompt renders the user prompt for one project and output language
func BuildAnalysisPrompt(project *models.Project, language string) string {
	description := project.Description
	if description == "" {
		description = "No description"
	}
	programmingLanguage := project.Language
	if programmingLanguage == "" {
		programmingLanguage = "Unknown"
	}

	var b strings.Builder
	b.WriteString("Analyze the following GitHub project and discover its business value and startup opportunities:\n\n")
	fmt.Fprintf(&b, "Project name: %s\n", project.FullName)
	fmt.Fprintf(&b, "Project description: %s\n", description)
	fmt.Fprintf(&b, "Primary language: %s\n", programmingLanguage)
	fmt.Fprintf(&b, "Stars: %d\n\n", project.StarsCount)
	b.WriteString("Please provide the following analysis:\n")
	b.WriteString("1. Business value: What problem does this project solve? What unique business value does it have?\n")
	b.WriteString("2. Market opportunity: What market does this project target? What is the market size and growth potential?\n")
	b.WriteString("3. Startup ideas: Based on this project, what startup directions or business models can be developed?\n")
	b.WriteString("4. Target audience: Who will be the main users or customers of this project?\n")
	b.WriteString("5. Competition analysis: What are the competitors in the market? What is the competitive advantage of this project?\n\n")
	b.WriteString(outputLanguageInstruction(language))
	b.WriteString("\n\nReturn the analysis in XML format, strictly following this structure:\n\n")
	b.WriteString("<analysis>\n")
	for _, tag := range sectionOrder {
		fmt.Fprintf(&b, "  <%s>\n    Your analysis for %s\n  </%s>\n", tag, strings.ReplaceAll(tag, "_", " "), tag)
	}
	b.WriteString("</analysis>\n")
	return b.String()
}

func outputLanguageInstruction(language string) string {
	switch language {
	case "en":
		return "Please return the analysis in English."
	case "zh":
		return "Please return the analysis in Chinese."
	default:
		return fmt.Sprintf("Please return the analysis in the language with code %q.", language)
	}
}
