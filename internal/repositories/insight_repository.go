package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
)

// InsightRepository owns the project_insights table. At most one row exists
// per (project_id, language); the UNIQUE constraint is the concurrency gate.
type InsightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

const insightColumns = `id, project_id, language, status, business_value, market_opportunity,
	startup_ideas, target_audience, competition_analysis, analysis_version, error_message,
	generated_at, created_at, last_updated`

// GetOrMarkPending returns the row for (projectID, language), creating it as
// pending when absent. created reports whether this call inserted the row; of
// any number of concurrent callers for the same key exactly one sees true.
func (r *InsightRepository) GetOrMarkPending(ctx context.Context, projectID int64, language string) (*models.Insight, bool, error) {
	language = models.NormalizeLanguageCode(language)
	if language == "" {
		return nil, false, &models.ValidationError{Field: "language", Message: "Analysis language is required"}
	}

	now := dbTime(time.Now())
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO project_insights (project_id, language, status, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_id, language) DO NOTHING
	`, projectID, language, models.InsightStatusPending, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark insight pending: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	insight, err := r.Get(ctx, projectID, language)
	if err != nil {
		return nil, false, err
	}
	return insight, affected == 1, nil
}

// Get retrieves the insight for (projectID, language)
func (r *InsightRepository) Get(ctx context.Context, projectID int64, language string) (*models.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM project_insights WHERE project_id = ? AND language = ?`
	return scanInsight(r.db.QueryRowContext(ctx, query, projectID, models.NormalizeLanguageCode(language)))
}

// CompletedLanguages returns the set of languages with a completed insight for projectID
func (r *InsightRepository) CompletedLanguages(ctx context.Context, projectID int64) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT language FROM project_insights WHERE project_id = ? AND status = ?`,
		projectID, models.InsightStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	languages := make(map[string]bool)
	for rows.Next() {
		var language string
		if err := rows.Scan(&language); err != nil {
			return nil, err
		}
		languages[language] = true
	}
	return languages, rows.Err()
}

// CountByStatus returns insight counts keyed by status
func (r *InsightRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM project_insights GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		string(models.InsightStatusPending):   0,
		string(models.InsightStatusCompleted): 0,
		string(models.InsightStatusFailed):    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Reopen moves a completed or failed insight back to pending for regeneration.
// Reopening a row that is already pending is a no-op.
func (r *InsightRepository) Reopen(ctx context.Context, projectID int64, language string) error {
	language = models.NormalizeLanguageCode(language)
	guard, guardArgs := transitionGuard(models.InsightStatusPending)
	args := append([]interface{}{models.InsightStatusPending, dbTime(time.Now()), projectID, language}, guardArgs...)
	result, err := r.db.ExecContext(ctx, `
		UPDATE project_insights SET status = ?, last_updated = ?
		WHERE project_id = ? AND language = ? AND `+guard, args...)
	if err != nil {
		return fmt.Errorf("failed to reopen insight: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// distinguishes "already pending" from "missing"
		if _, err := r.Get(ctx, projectID, language); err != nil {
			return err
		}
	}
	return nil
}

// Complete stores generated text and moves a pending insight to completed
func (r *InsightRepository) Complete(ctx context.Context, projectID int64, language string, fields models.InsightFields, version string) error {
	now := dbTime(time.Now())
	guard, guardArgs := transitionGuard(models.InsightStatusCompleted)
	args := []interface{}{
		models.InsightStatusCompleted,
		fields.BusinessValue,
		fields.MarketOpportunity,
		fields.StartupIdeas,
		fields.TargetAudience,
		fields.CompetitionAnalysis,
		version,
		now,
		now,
		projectID,
		models.NormalizeLanguageCode(language),
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE project_insights SET
			status = ?,
			business_value = ?,
			market_opportunity = ?,
			startup_ideas = ?,
			target_audience = ?,
			competition_analysis = ?,
			analysis_version = ?,
			error_message = NULL,
			generated_at = ?,
			last_updated = ?
		WHERE project_id = ? AND language = ? AND `+guard, append(args, guardArgs...)...)
	if err != nil {
		return fmt.Errorf("failed to complete insight: %w", err)
	}
	return r.expectTransition(ctx, result, projectID, language, models.InsightStatusCompleted)
}

// Fail records a generation failure on a pending insight. Sections that
// already hold text are kept; blank ones get the language's placeholders.
func (r *InsightRepository) Fail(ctx context.Context, projectID int64, language, reason string) error {
	language = models.NormalizeLanguageCode(language)
	placeholders := models.FailurePlaceholders(language)
	guard, guardArgs := transitionGuard(models.InsightStatusFailed)
	args := []interface{}{
		models.InsightStatusFailed,
		placeholders.BusinessValue,
		placeholders.MarketOpportunity,
		placeholders.StartupIdeas,
		placeholders.TargetAudience,
		placeholders.CompetitionAnalysis,
		strings.TrimSpace(reason),
		dbTime(time.Now()),
		projectID,
		language,
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE project_insights SET
			status = ?,
			business_value = CASE WHEN TRIM(business_value) = '' THEN ? ELSE business_value END,
			market_opportunity = CASE WHEN TRIM(market_opportunity) = '' THEN ? ELSE market_opportunity END,
			startup_ideas = CASE WHEN TRIM(startup_ideas) = '' THEN ? ELSE startup_ideas END,
			target_audience = CASE WHEN TRIM(target_audience) = '' THEN ? ELSE target_audience END,
			competition_analysis = CASE WHEN TRIM(competition_analysis) = '' THEN ? ELSE competition_analysis END,
			error_message = ?,
			last_updated = ?
		WHERE project_id = ? AND language = ? AND `+guard, append(args, guardArgs...)...)
	if err != nil {
		return fmt.Errorf("failed to mark insight failed: %w", err)
	}
	return r.expectTransition(ctx, result, projectID, language, models.InsightStatusFailed)
}

// expectTransition turns a zero-row update into ErrNotFound or an invalid transition error
func (r *InsightRepository) expectTransition(ctx context.Context, result sql.Result, projectID int64, language string, to models.InsightStatus) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	current, err := r.Get(ctx, projectID, language)
	if err != nil {
		return err
	}
	if models.CanTransition(current.Status, to) {
		return fmt.Errorf("insight %d/%s changed during %s transition", projectID, language, to)
	}
	return fmt.Errorf("invalid insight transition %s -> %s for project %d/%s", current.Status, to, projectID, language)
}

// transitionGuard renders the WHERE clause allowing only rows whose status may move to to
func transitionGuard(to models.InsightStatus) (string, []interface{}) {
	sources := models.TransitionSources(to)
	args := make([]interface{}, len(sources))
	for i, status := range sources {
		args[i] = status
	}
	return "status IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(sources)), ", ") + ")", args
}

func scanInsight(row rowScanner) (*models.Insight, error) {
	insight := &models.Insight{}
	err := row.Scan(
		&insight.ID,
		&insight.ProjectID,
		&insight.Language,
		&insight.Status,
		&insight.BusinessValue,
		&insight.MarketOpportunity,
		&insight.StartupIdeas,
		&insight.TargetAudience,
		&insight.CompetitionAnalysis,
		&insight.AnalysisVersion,
		&insight.ErrorMessage,
		&insight.GeneratedAt,
		&insight.CreatedAt,
		&insight.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return insight, nil
}
