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

func TestProjectUpsert(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Insert then update is idempotent", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))

		first, isNew, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 100, day))
		require.NoError(t, err)
		assert.True(t, isNew)
		assert.Equal(t, "acme/rocket", first.FullName)

		second, isNew, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 100, day))
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.Equal(t, first.ID, second.ID)

		count, err := repo.Count(ctx, models.ProjectFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Update refreshes stars and keeps the newest trending date", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))

		_, _, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 100, day))
		require.NoError(t, err)

		updated, isNew, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 250, day.Add(48*time.Hour)))
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.Equal(t, 250, updated.StarsCount)
		assert.True(t, updated.TrendingDate.Equal(day.Add(48*time.Hour)))

		// an older observation does not move the date back
		older, _, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 260, day))
		require.NoError(t, err)
		assert.Equal(t, 260, older.StarsCount)
		assert.True(t, older.TrendingDate.Equal(day.Add(48*time.Hour)))
	})

	t.Run("Identity is case-insensitive", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))

		_, _, err := repo.Upsert(ctx, testutil.Candidate("Acme", "Rocket", 1, day))
		require.NoError(t, err)
		_, isNew, err := repo.Upsert(ctx, testutil.Candidate("acme", "rocket", 2, day))
		require.NoError(t, err)
		assert.False(t, isNew)

		found, err := repo.GetByName(ctx, "ACME", "ROCKET")
		require.NoError(t, err)
		assert.Equal(t, 2, found.StarsCount)
	})

	t.Run("Invalid candidates are rejected", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))

		testCases := []struct {
			name      string
			candidate *models.CandidateProject
		}{
			{"missing owner", testutil.Candidate("", "rocket", 1, day)},
			{"missing name", testutil.Candidate("acme", "", 1, day)},
			{"bad characters", testutil.Candidate("acme", "roc ket", 1, day)},
			{"negative stars", testutil.Candidate("acme", "rocket", -1, day)},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, _, err := repo.Upsert(ctx, tc.candidate)
				var validationErr *models.ValidationError
				assert.ErrorAs(t, err, &validationErr)
			})
		}
	})

	t.Run("Missing project returns ErrNotFound", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))
		_, err := repo.GetByName(ctx, "nobody", "nothing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestProjectListing(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, n int) *ProjectRepository {
		repo := NewProjectRepository(testutil.NewDB(t))
		for i := 0; i < n; i++ {
			// pairs share a trending date so ties exercise the owner/name order
			c := testutil.Candidate(fmt.Sprintf("owner%02d", i), fmt.Sprintf("repo%02d", i), i*10, base.Add(time.Duration(i/2)*time.Hour))
			_, _, err := repo.Upsert(ctx, c)
			require.NoError(t, err)
		}
		return repo
	}

	t.Run("Offset pages are disjoint and complete", func(t *testing.T) {
		repo := seed(t, 24)

		first, err := repo.List(ctx, models.ProjectFilter{}, models.Page{Limit: 12})
		require.NoError(t, err)
		second, err := repo.List(ctx, models.ProjectFilter{}, models.Page{Limit: 12, Offset: 12})
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, p := range append(first, second...) {
			assert.False(t, seen[p.FullName], "duplicate %s", p.FullName)
			seen[p.FullName] = true
		}
		assert.Len(t, seen, 24)

		// newest first
		assert.True(t, !first[0].TrendingDate.Before(first[len(first)-1].TrendingDate))
	})

	t.Run("Cursor pages are disjoint and complete", func(t *testing.T) {
		repo := seed(t, 24)

		var all []*models.Project
		var after *models.Cursor
		for {
			page, err := repo.List(ctx, models.ProjectFilter{}, models.Page{Limit: 5, After: after})
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			all = append(all, page...)
			after = models.CursorAfter(page[len(page)-1], models.SortTrending)
		}
		require.Len(t, all, 24)

		seen := make(map[string]bool)
		for _, p := range all {
			seen[p.FullName] = true
		}
		assert.Len(t, seen, 24)
	})

	t.Run("Stars sort with cursor", func(t *testing.T) {
		repo := seed(t, 6)

		first, err := repo.List(ctx, models.ProjectFilter{}, models.Page{Limit: 3, Sort: models.SortStars})
		require.NoError(t, err)
		require.Len(t, first, 3)
		assert.Equal(t, []int{50, 40, 30}, []int{first[0].StarsCount, first[1].StarsCount, first[2].StarsCount})

		rest, err := repo.List(ctx, models.ProjectFilter{}, models.Page{
			Limit: 10,
			Sort:  models.SortStars,
			After: models.CursorAfter(first[2], models.SortStars),
		})
		require.NoError(t, err)
		require.Len(t, rest, 3)
		assert.Equal(t, 20, rest[0].StarsCount)
	})

	t.Run("Search matches name, description and full name", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))
		c := testutil.Candidate("fastco", "blaze", 1, base)
		c.Description = "A 100% async HTTP router"
		_, _, err := repo.Upsert(ctx, c)
		require.NoError(t, err)
		_, _, err = repo.Upsert(ctx, testutil.Candidate("other", "thing", 1, base))
		require.NoError(t, err)

		for _, term := range []string{"BLAZE", "async http", "fastco/bl", "100%"} {
			found, err := repo.List(ctx, models.ProjectFilter{Search: term}, models.Page{Limit: 10})
			require.NoError(t, err)
			require.Len(t, found, 1, term)
			assert.Equal(t, "fastco/blaze", found[0].FullName)
		}

		none, err := repo.List(ctx, models.ProjectFilter{Search: "_"}, models.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Since filter excludes older projects", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))
		now := time.Now()
		_, _, err := repo.Upsert(ctx, testutil.Candidate("old", "one", 1, now.Add(-10*24*time.Hour)))
		require.NoError(t, err)
		_, _, err = repo.Upsert(ctx, testutil.Candidate("new", "one", 1, now.Add(-time.Hour)))
		require.NoError(t, err)

		since := now.Add(-7 * 24 * time.Hour)
		found, err := repo.List(ctx, models.ProjectFilter{Since: &since}, models.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "new", found[0].Owner)
	})

	t.Run("Languages are grouped by count", func(t *testing.T) {
		repo := NewProjectRepository(testutil.NewDB(t))
		langs := []string{"Go", "Go", "Rust", ""}
		for i, lang := range langs {
			c := testutil.Candidate("o", fmt.Sprintf("r%d", i), 1, base)
			c.Language = lang
			_, _, err := repo.Upsert(ctx, c)
			require.NoError(t, err)
		}

		languages, err := repo.Languages(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []models.LanguageCount{{Language: "Go", Count: 2}, {Language: "Rust", Count: 1}}, languages)

		goOnly, err := repo.Count(ctx, models.ProjectFilter{Language: "go"})
		require.NoError(t, err)
		assert.Equal(t, 2, goOnly)
	})
}

func TestProjectUpsertConcurrent(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	const workers = 40

	t.Run("Same key across repositories creates one row", func(t *testing.T) {
		db := testutil.NewDB(t)
		repos := []*ProjectRepository{NewProjectRepository(db), NewProjectRepository(db)}

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		var errs []error
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, isNew, err := repos[i%2].Upsert(ctx, testutil.Candidate("acme", "rocket", i, day))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				if isNew {
					created++
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, 1, created)
		count, err := repos[0].Count(ctx, models.ProjectFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Distinct keys are all created", func(t *testing.T) {
		db := testutil.NewDB(t)
		repos := []*ProjectRepository{NewProjectRepository(db), NewProjectRepository(db)}

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		var errs []error
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, isNew, err := repos[i%2].Upsert(ctx, testutil.Candidate("acme", fmt.Sprintf("rocket%02d", i), i, day))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				if isNew {
					created++
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, workers, created)
		count, err := repos[0].Count(ctx, models.ProjectFilter{})
		require.NoError(t, err)
		assert.Equal(t, workers, count)
	})
}
