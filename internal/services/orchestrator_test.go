package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorRunOnce(t *testing.T) {
	ctx := context.Background()
	insightLanguages := []string{"en", "zh"}

	t.Run("Only new projects are dispatched and insights are pending at once", func(t *testing.T) {
		f := newServiceFixture(t)
		yesterday := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Second)
		today := time.Now().UTC().Truncate(time.Second)

		// B and C were scraped and analysed yesterday
		for _, name := range []string{"bravo", "charlie"} {
			project, _, err := f.projects.Upsert(ctx, testutil.Candidate("pyorg", name, 10, yesterday))
			require.NoError(t, err)
			for _, language := range insightLanguages {
				_, _, err := f.insights.GetOrMarkPending(ctx, project.ID, language)
				require.NoError(t, err)
				require.NoError(t, f.insights.Complete(ctx, project.ID, language, models.InsightFields{BusinessValue: "x"}, "gpt-4"))
			}
		}

		feed := &fakeFeed{listings: map[string][]models.CandidateProject{
			"python": {
				*testutil.Candidate("pyorg", "alpha", 5, today),
				*testutil.Candidate("pyorg", "bravo", 20, today),
				*testutil.Candidate("pyorg", "charlie", 30, today),
			},
		}}
		orchestrator := NewOrchestrator(feed, f.projects, f.service, nil, OrchestratorConfig{
			InsightLanguages: insightLanguages,
			Concurrency:      2,
		})

		stats, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{Languages: []string{"Python"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"python"}, feed.fetched)
		assert.Equal(t, 3, stats.TotalScraped)
		assert.Equal(t, 1, stats.NewProjects)
		assert.Equal(t, 2, stats.UpdatedProjects)
		assert.Equal(t, 2, stats.Dispatched)

		for _, name := range []string{"alpha", "bravo", "charlie"} {
			project, err := f.projects.GetByName(ctx, "pyorg", name)
			require.NoError(t, err)
			assert.True(t, project.TrendingDate.Equal(today), name)
		}

		counts, err := f.jobs.CountByStatus(ctx, models.JobTypeAnalyze)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[models.JobStatusPending])

		service := NewProjectService(f.projects, f.insights, ListingConfig{MaxTotalResults: 100, MaxPageSize: 50, DefaultPageSize: 20})
		insight, err := service.GetInsight(ctx, "pyorg", "alpha", "en")
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusPending, insight.Status)
	})

	t.Run("Force dispatches known projects again", func(t *testing.T) {
		f := newServiceFixture(t)
		project := f.project(t, "acme", "rocket")
		_, _, err := f.insights.GetOrMarkPending(ctx, project.ID, "en")
		require.NoError(t, err)
		require.NoError(t, f.insights.Complete(ctx, project.ID, "en", models.InsightFields{BusinessValue: "x"}, "gpt-4"))

		feed := &fakeFeed{listings: map[string][]models.CandidateProject{
			"": {*testutil.Candidate("acme", "rocket", 1, time.Now())},
		}}
		orchestrator := NewOrchestrator(feed, f.projects, f.service, nil, OrchestratorConfig{InsightLanguages: []string{"en"}})

		stats, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{})
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Dispatched)

		stats, err = orchestrator.RunOnce(ctx, models.ScrapeRequest{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Dispatched)
	})

	t.Run("A failing language does not stop the others", func(t *testing.T) {
		f := newServiceFixture(t)
		feed := &fakeFeed{
			listings: map[string][]models.CandidateProject{
				"go": {*testutil.Candidate("gopher", "tool", 1, time.Now())},
			},
			errs: map[string]error{
				"rust": &models.SourceUnavailableError{Language: "rust", Err: errors.New("unexpected status 503")},
			},
		}
		orchestrator := NewOrchestrator(feed, f.projects, f.service, nil, OrchestratorConfig{
			Languages:        []string{"go", "rust"},
			InsightLanguages: []string{"en"},
			Concurrency:      2,
		})

		stats, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.FailedLanguages)
		assert.Contains(t, stats.Languages["rust"].Error, "503")
		assert.Equal(t, 1, stats.Languages["go"].New)

		_, err = f.projects.GetByName(ctx, "gopher", "tool")
		assert.NoError(t, err)
	})

	t.Run("Storage failure aborts the run", func(t *testing.T) {
		feed := &fakeFeed{listings: map[string][]models.CandidateProject{
			"": {*testutil.Candidate("acme", "rocket", 1, time.Now())},
		}}
		orchestrator := NewOrchestrator(feed, failingStore{}, nil, nil, OrchestratorConfig{})

		stats, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
		require.NotNil(t, stats)
		assert.NotEmpty(t, stats.Languages["all"].Error)
	})

	t.Run("Enrichment errors do not drop candidates", func(t *testing.T) {
		f := newServiceFixture(t)
		feed := &fakeFeed{listings: map[string][]models.CandidateProject{
			"": {*testutil.Candidate("acme", "rocket", 1, time.Now())},
		}}
		orchestrator := NewOrchestrator(feed, f.projects, f.service, failingEnricher{}, OrchestratorConfig{InsightLanguages: []string{"en"}})

		stats, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.NewProjects)
	})

	t.Run("Unknown time range is rejected", func(t *testing.T) {
		orchestrator := NewOrchestrator(&fakeFeed{}, failingStore{}, nil, nil, OrchestratorConfig{})
		_, err := orchestrator.RunOnce(ctx, models.ScrapeRequest{TimeRange: "yearly"})
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

type failingStore struct{}

func (failingStore) Upsert(ctx context.Context, candidate *models.CandidateProject) (*models.Project, bool, error) {
	return nil, false, errors.New("database is locked")
}

type failingEnricher struct{}

func (failingEnricher) Enrich(ctx context.Context, candidate *models.CandidateProject) error {
	return errors.New("rate limited")
}
