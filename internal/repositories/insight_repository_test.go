package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProject(t *testing.T, repo *ProjectRepository) *models.Project {
	t.Helper()
	project, _, err := repo.Upsert(context.Background(), testutil.Candidate("acme", "rocket", 10, time.Now()))
	require.NoError(t, err)
	return project
}

func TestInsightPendingGate(t *testing.T) {
	ctx := context.Background()

	t.Run("Concurrent callers create exactly one row", func(t *testing.T) {
		db := testutil.NewDB(t)
		project := seedProject(t, NewProjectRepository(db))
		repo := NewInsightRepository(db)

		const callers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		errs := make([]error, 0)

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, isCreated, err := repo.GetOrMarkPending(ctx, project.ID, "en")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if isCreated {
					created++
				}
			}()
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, 1, created)

		insight, err := repo.Get(ctx, project.ID, "en")
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusPending, insight.Status)
	})

	t.Run("Empty language is rejected", func(t *testing.T) {
		db := testutil.NewDB(t)
		project := seedProject(t, NewProjectRepository(db))

		_, _, err := NewInsightRepository(db).GetOrMarkPending(ctx, project.ID, "  ")
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestInsightTransitions(t *testing.T) {
	ctx := context.Background()
	fields := models.InsightFields{
		BusinessValue:       "value",
		MarketOpportunity:   "market",
		StartupIdeas:        "ideas",
		TargetAudience:      "audience",
		CompetitionAnalysis: "competition",
	}

	t.Run("Pending to completed", func(t *testing.T) {
		db := testutil.NewDB(t)
		project := seedProject(t, NewProjectRepository(db))
		repo := NewInsightRepository(db)

		_, _, err := repo.GetOrMarkPending(ctx, project.ID, "en")
		require.NoError(t, err)
		require.NoError(t, repo.Complete(ctx, project.ID, "en", fields, "gpt-4"))

		insight, err := repo.Get(ctx, project.ID, "en")
		require.NoError(t, err)
		assert.Equal(t, models.InsightStatusCompleted, insight.Status)
		assert.Equal(t, fields, insight.InsightFields)
		assert.Equal(t, "gpt-4", insight.AnalysisVersion)
		assert.NotNil(t, insight.GeneratedAt)

		completed, err := repo.CompletedLanguages(ctx, project.ID)
		require.NoError(t, err)
		assert.True(t, completed["en"])

		// completed rows must be reopened before they change again
		assert.Error(t, repo.Complete(ctx, project.ID, "en", fields, "gpt-4"))
	})

	t.Run("Fail keeps existing text and fills placeholders", func(t *testing.T) {
		db := testutil.NewDB(t)
		project := seedProject(t, NewProjectRepository(db))
		repo := NewInsightRepository(db)

		_, _, err := repo.GetOrMarkPending(ctx, project.ID, "en")
		require.NoError(t, err)
		require.NoError(t, repo.Complete(ctx, project.ID, "en", models.InsightFields{BusinessValue: "kept"}, "gpt-4"))
		require.NoError(t, repo.Reopen(ctx, project.ID, "en"))
		require.NoError(t, repo.Fail(ctx, project.ID, "en", "timeout"))

		insight, err := repo.Get(ctx, project.ID, "en")
		require.NoError(t, err)
		placeholders := models.FailurePlaceholders("en")
		assert.Equal(t, models.InsightStatusFailed, insight.Status)
		assert.Equal(t, "kept", insight.BusinessValue)
		assert.Equal(t, placeholders.MarketOpportunity, insight.MarketOpportunity)
		assert.Equal(t, placeholders.CompetitionAnalysis, insight.CompetitionAnalysis)
		require.NotNil(t, insight.ErrorMessage)
		assert.Equal(t, "timeout", *insight.ErrorMessage)
	})

	t.Run("Status changes follow CanTransition", func(t *testing.T) {
		statuses := []models.InsightStatus{models.InsightStatusPending, models.InsightStatusCompleted, models.InsightStatusFailed}
		for _, from := range statuses {
			for _, to := range statuses {
				t.Run(fmt.Sprintf("%s to %s", from, to), func(t *testing.T) {
					db := testutil.NewDB(t)
					project := seedProject(t, NewProjectRepository(db))
					repo := NewInsightRepository(db)

					_, _, err := repo.GetOrMarkPending(ctx, project.ID, "en")
					require.NoError(t, err)
					switch from {
					case models.InsightStatusCompleted:
						require.NoError(t, repo.Complete(ctx, project.ID, "en", fields, "gpt-4"))
					case models.InsightStatusFailed:
						require.NoError(t, repo.Fail(ctx, project.ID, "en", "boom"))
					}

					switch to {
					case models.InsightStatusPending:
						err = repo.Reopen(ctx, project.ID, "en")
					case models.InsightStatusCompleted:
						err = repo.Complete(ctx, project.ID, "en", fields, "gpt-4")
					case models.InsightStatusFailed:
						err = repo.Fail(ctx, project.ID, "en", "boom")
					}

					// reopening a pending row is a no-op
					if models.CanTransition(from, to) || (from == to && to == models.InsightStatusPending) {
						require.NoError(t, err)
						insight, err := repo.Get(ctx, project.ID, "en")
						require.NoError(t, err)
						assert.Equal(t, to, insight.Status)
					} else {
						assert.ErrorContains(t, err, "invalid insight transition")
						insight, err := repo.Get(ctx, project.ID, "en")
						require.NoError(t, err)
						assert.Equal(t, from, insight.Status)
					}
				})
			}
		}
	})

	t.Run("Reopen of a missing row returns ErrNotFound", func(t *testing.T) {
		db := testutil.NewDB(t)
		project := seedProject(t, NewProjectRepository(db))
		err := NewInsightRepository(db).Reopen(ctx, project.ID, "zh")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
