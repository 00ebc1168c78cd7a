package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/internal/testutil"
	"github.com/alimgiray/ideabase/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine    *AnalysisEngine
	generator *fakeGenerator
	insights  *repositories.InsightRepository
	project   *models.Project
}

func newEngineFixture(t *testing.T, generator *fakeGenerator) *engineFixture {
	t.Helper()
	db := testutil.NewDB(t)
	projects := repositories.NewProjectRepository(db)
	insights := repositories.NewInsightRepository(db)

	project, _, err := projects.Upsert(context.Background(), testutil.Candidate("acme", "rocket", 10, time.Now()))
	require.NoError(t, err)

	return &engineFixture{
		engine:    NewAnalysisEngine(insights, generator, "gpt-4", time.Second),
		generator: generator,
		insights:  insights,
		project:   project,
	}
}

func TestAnalysisEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed insight is served from the store", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{response: taggedResponse})

		first, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusCompleted, first.Status)
		assert.Equal(t, "Saves time", first.BusinessValue)
		assert.Equal(t, "gpt-4", first.AnalysisVersion)
		assert.Equal(t, int32(1), f.generator.calls.Load())

		second, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int32(1), f.generator.calls.Load())
	})

	t.Run("Languages are cached independently", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{response: taggedResponse})

		_, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		zh, err := f.engine.Analyze(ctx, f.project, "ZH", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, "zh", zh.Language)
		assert.Equal(t, int32(2), f.generator.calls.Load())
	})

	t.Run("Force regenerates a completed insight", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{response: taggedResponse})

		_, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		f.generator.response = "<business_value>Even better</business_value>"

		insight, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, int32(2), f.generator.calls.Load())
		assert.Equal(t, "Even better", insight.BusinessValue)
		assert.Equal(t, models.SectionDefaults("en").MarketOpportunity, insight.MarketOpportunity)
	})

	t.Run("Backend failure is stored, not returned", func(t *testing.T) {
		testCases := []struct {
			name     string
			err      error
			category string
		}{
			{"rate limited", &llm.StatusError{StatusCode: http.StatusTooManyRequests}, models.GenerationRateLimited},
			{"timeout", fmt.Errorf("llm request: %w", context.DeadlineExceeded), models.GenerationTimeout},
			{"empty", llm.ErrEmptyContent, models.GenerationMalformedResponse},
			{"server", &llm.StatusError{StatusCode: http.StatusBadGateway}, models.GenerationBackendError},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				f := newEngineFixture(t, &fakeGenerator{err: tc.err})

				insight, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
				require.NoError(t, err)
				assert.Equal(t, models.InsightStatusFailed, insight.Status)
				assert.Equal(t, models.FailurePlaceholders("en").BusinessValue, insight.BusinessValue)
				require.NotNil(t, insight.ErrorMessage)
				assert.Contains(t, *insight.ErrorMessage, tc.category)
			})
		}
	})

	t.Run("Failed insight is retried on the next call", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{err: errors.New("boom")})

		failed, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusFailed, failed.Status)

		f.generator.err = nil
		f.generator.response = taggedResponse
		retried, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusCompleted, retried.Status)
		assert.Equal(t, failed.ID, retried.ID)
		assert.Nil(t, retried.ErrorMessage)
	})

	t.Run("Untagged response is kept as raw fallback", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{response: "A free-form answer."})

		insight, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusCompleted, insight.Status)
		assert.Equal(t, models.AnalysisVersionFallback, insight.AnalysisVersion)
		assert.Equal(t, "A free-form answer.", insight.BusinessValue)
		assert.Empty(t, insight.MarketOpportunity)
	})

	t.Run("Failure after a concurrent completion returns the completed row", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{})
		generator := generatorFunc(func(ctx context.Context) (string, error) {
			// another worker finishes the same key while this call is in flight
			require.NoError(t, f.insights.Complete(ctx, f.project.ID, "en", models.InsightFields{BusinessValue: "From elsewhere"}, "gpt-4"))
			return "", errors.New("backend down")
		})
		engine := NewAnalysisEngine(f.insights, generator, "gpt-4", time.Second)

		insight, err := engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusCompleted, insight.Status)
		assert.Equal(t, "From elsewhere", insight.BusinessValue)
	})

	t.Run("Missing configuration aborts", func(t *testing.T) {
		f := newEngineFixture(t, &fakeGenerator{err: llm.ErrConfiguration})

		_, err := f.engine.Analyze(ctx, f.project, "en", AnalyzeOptions{})
		assert.ErrorIs(t, err, models.ErrConfiguration)

		insight, err := f.insights.Get(ctx, f.project.ID, "en")
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusPending, insight.Status)
	})
}

type generatorFunc func(ctx context.Context) (string, error)

func (g generatorFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g(ctx)
}
