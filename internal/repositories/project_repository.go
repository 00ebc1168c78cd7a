package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
)

// ProjectRepository owns the projects table
type ProjectRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{
		db: db,
	}
}

const projectColumns = `id, owner, name, COALESCE(description, ''), COALESCE(language, ''),
	stars_count, forks_count, repository_url, homepage_url, trending_date, created_at, last_updated`

// Upsert inserts the candidate or refreshes the mutable fields of the existing
// row with the same (owner, name). trending_date only moves forward.
func (r *ProjectRepository) Upsert(ctx context.Context, candidate *models.CandidateProject) (*models.Project, bool, error) {
	if err := candidate.Validate(); err != nil {
		return nil, false, err
	}

	now := dbTime(time.Now())
	observed := now
	if !candidate.TrendingDate.IsZero() {
		observed = dbTime(candidate.TrendingDate)
	}

	// serializes the insert-or-update pair for this process; the UNIQUE
	// constraint covers other processes
	r.mu.Lock()
	defer r.mu.Unlock()

	insert := `
		INSERT INTO projects (owner, name, description, language, stars_count, forks_count,
			repository_url, homepage_url, trending_date, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, name) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, insert,
		candidate.Owner,
		candidate.Name,
		nullableString(candidate.Description),
		nullableString(candidate.Language),
		candidate.StarsCount,
		candidate.ForksCount,
		candidate.RepositoryURL,
		candidate.HomepageURL,
		observed,
		now,
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert project %s: %w", candidate.FullName(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	isNew := affected == 1

	if !isNew {
		update := `
			UPDATE projects SET
				description = COALESCE(?, description),
				language = COALESCE(?, language),
				stars_count = ?,
				forks_count = ?,
				homepage_url = COALESCE(?, homepage_url),
				trending_date = MAX(trending_date, ?),
				last_updated = ?
			WHERE owner = ? AND name = ?
		`
		_, err = r.db.ExecContext(ctx, update,
			nullableString(candidate.Description),
			nullableString(candidate.Language),
			candidate.StarsCount,
			candidate.ForksCount,
			candidate.HomepageURL,
			observed,
			now,
			candidate.Owner,
			candidate.Name,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update project %s: %w", candidate.FullName(), err)
		}
	}

	project, err := r.GetByName(ctx, candidate.Owner, candidate.Name)
	if err != nil {
		return nil, false, err
	}
	return project, isNew, nil
}

// GetByName retrieves a project by owner and name, case-insensitively
func (r *ProjectRepository) GetByName(ctx context.Context, owner, name string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner = ? AND name = ?`
	return scanProject(r.db.QueryRowContext(ctx, query, owner, name))
}

// GetByID retrieves a project by its storage id
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

// List returns one page of projects matching filter. Ordering is total:
// (trending_date DESC | stars_count DESC), then owner, then name.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter, page models.Page) ([]*models.Project, error) {
	where, args := buildProjectFilter(filter)

	sort := page.Sort
	if sort == "" {
		sort = models.SortTrending
	}

	if page.After != nil {
		clause, cursorArgs := keysetClause(sort, page.After)
		where = append(where, clause)
		args = append(args, cursorArgs...)
	}

	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if sort == models.SortStars {
		query += ` ORDER BY stars_count DESC, owner ASC, name ASC`
	} else {
		query += ` ORDER BY trending_date DESC, owner ASC, name ASC`
	}

	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if page.After == nil && page.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, page.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Count returns how many projects match filter
func (r *ProjectRepository) Count(ctx context.Context, filter models.ProjectFilter) (int, error) {
	where, args := buildProjectFilter(filter)
	query := `SELECT COUNT(*) FROM projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Languages returns every non-empty language with its project count, most common first
func (r *ProjectRepository) Languages(ctx context.Context, limit int) ([]models.LanguageCount, error) {
	query := `
		SELECT language, COUNT(*) AS count
		FROM projects
		WHERE language IS NOT NULL AND language != ''
		GROUP BY language
		ORDER BY count DESC, language ASC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	languages := make([]models.LanguageCount, 0)
	for rows.Next() {
		var lc models.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return nil, err
		}
		languages = append(languages, lc)
	}
	return languages, rows.Err()
}

// CountCreatedSince returns how many projects were first seen at or after since
func (r *ProjectRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE created_at >= ?`, dbTime(since)).Scan(&count)
	return count, err
}

// ListMissingInsight returns the most recently trending projects that have no
// completed insight in language
func (r *ProjectRepository) ListMissingInsight(ctx context.Context, language string, limit int) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE NOT EXISTS (
			SELECT 1 FROM project_insights i
			WHERE i.project_id = p.id AND i.language = ? AND i.status = ?
		)
		ORDER BY trending_date DESC, owner ASC, name ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, language, models.InsightStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func buildProjectFilter(filter models.ProjectFilter) ([]string, []any) {
	var where []string
	var args []any

	if language := strings.TrimSpace(filter.Language); language != "" {
		where = append(where, `language = ? COLLATE NOCASE`)
		args = append(args, language)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, `(name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR (owner || '/' || name) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if filter.Since != nil {
		where = append(where, `trending_date >= ?`)
		args = append(args, dbTime(*filter.Since))
	}

	return where, args
}

func keysetClause(sort models.ProjectSort, after *models.Cursor) (string, []any) {
	if sort == models.SortStars {
		return `(stars_count < ? OR (stars_count = ? AND (owner > ? OR (owner = ? AND name > ?))))`,
			[]any{after.StarsCount, after.StarsCount, after.Owner, after.Owner, after.Name}
	}
	date := dbTime(after.TrendingDate)
	return `(trending_date < ? OR (trending_date = ? AND (owner > ? OR (owner = ? AND name > ?))))`,
		[]any{date, date, after.Owner, after.Owner, after.Name}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	project := &models.Project{}
	err := row.Scan(
		&project.ID,
		&project.Owner,
		&project.Name,
		&project.Description,
		&project.Language,
		&project.StarsCount,
		&project.ForksCount,
		&project.RepositoryURL,
		&project.HomepageURL,
		&project.TrendingDate,
		&project.CreatedAt,
		&project.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.FullName = project.Owner + "/" + project.Name
	return project, nil
}
