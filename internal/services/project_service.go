package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
)

const (
	MessageLimitReached     = "limit_reached"
	MessageApproachingLimit = "approaching_limit"

	// maxFilterDays is about a century; larger day filters select everything
	maxFilterDays = 36500
)

type ListingConfig struct {
	// MaxTotalResults caps how deep offset pagination may go
	MaxTotalResults int
	MaxPageSize     int
	DefaultPageSize int
}

// ProjectQuery is a listing request as received from the API
type ProjectQuery struct {
	Search   string
	Language string
	Days     *int
	Limit    *int
	Offset   int
	Sort     string
	Cursor   string
}

// ProjectService serves the read API
type ProjectService struct {
	projectRepo *repositories.ProjectRepository
	insightRepo *repositories.InsightRepository
	cfg         ListingConfig
	now         func() time.Time
}

func NewProjectService(projectRepo *repositories.ProjectRepository, insightRepo *repositories.InsightRepository, cfg ListingConfig) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		insightRepo: insightRepo,
		cfg:         cfg,
		now:         time.Now,
	}
}

// ListProjects returns one page of the catalogue. Offset pagination is capped
// at MaxTotalResults; cursor pagination is not.
func (s *ProjectService) ListProjects(ctx context.Context, q ProjectQuery) (*models.ProjectPage, error) {
	limit := s.cfg.DefaultPageSize
	if q.Limit != nil {
		limit = *q.Limit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if q.Offset < 0 {
		return nil, &models.ValidationError{Field: "offset", Message: "Offset must not be negative"}
	}

	sort, err := models.ParseProjectSort(q.Sort)
	if err != nil {
		return nil, err
	}

	filter := models.ProjectFilter{Language: q.Language, Search: q.Search}
	if q.Days != nil {
		if *q.Days <= 0 {
			return nil, &models.ValidationError{Field: "days", Message: "Days must be a positive integer"}
		}
		if *q.Days <= maxFilterDays {
			since := s.now().AddDate(0, 0, -*q.Days)
			filter.Since = &since
		}
	}

	count, err := s.projectRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	page := &models.ProjectPage{
		Data:   make([]*models.Project, 0),
		Total:  min(count, s.cfg.MaxTotalResults),
		Limit:  limit,
		Offset: q.Offset,
	}

	if q.Cursor != "" {
		after, err := models.DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		if after.Sort != sort {
			return nil, &models.ValidationError{Field: "cursor", Message: "Cursor does not match sort"}
		}
		page.Offset = 0
		page.Data, err = s.projectRepo.List(ctx, filter, models.Page{Limit: limit, Sort: sort, After: after})
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		if len(page.Data) == limit {
			page.NextCursor = models.CursorAfter(page.Data[len(page.Data)-1], sort).Encode()
		}
		return page, nil
	}

	if q.Offset >= s.cfg.MaxTotalResults {
		page.Message = MessageLimitReached
		return page, nil
	}

	actualLimit := min(limit, s.cfg.MaxTotalResults-q.Offset)
	page.Data, err = s.projectRepo.List(ctx, filter, models.Page{Limit: actualLimit, Offset: q.Offset, Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	if q.Offset+limit >= s.cfg.MaxTotalResults {
		page.Message = MessageApproachingLimit
	}
	if len(page.Data) == actualLimit && q.Offset+actualLimit < count {
		page.NextCursor = models.CursorAfter(page.Data[len(page.Data)-1], sort).Encode()
	}
	return page, nil
}

// GetProject retrieves a project by owner and name
func (s *ProjectService) GetProject(ctx context.Context, owner, name string) (*models.Project, error) {
	return s.projectRepo.GetByName(ctx, owner, name)
}

// GetInsight returns the insight of a project in any status
func (s *ProjectService) GetInsight(ctx context.Context, owner, name, language string) (*models.Insight, error) {
	project, err := s.projectRepo.GetByName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return s.insightRepo.Get(ctx, project.ID, language)
}

// Languages lists project languages by popularity
func (s *ProjectService) Languages(ctx context.Context) ([]models.LanguageCount, error) {
	return s.projectRepo.Languages(ctx, 0)
}

// Stats summarises the catalogue
func (s *ProjectService) Stats(ctx context.Context) (*models.ProjectStats, error) {
	total, err := s.projectRepo.Count(ctx, models.ProjectFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	recent, err := s.projectRepo.CountCreatedSince(ctx, s.now().Add(-7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count new projects: %w", err)
	}
	languages, err := s.projectRepo.Languages(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to load languages: %w", err)
	}
	insights, err := s.insightRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count insights: %w", err)
	}
	return &models.ProjectStats{
		TotalProjects: total,
		NewProjects7d: recent,
		TopLanguages:  languages,
		Insights:      insights,
	}, nil
}
