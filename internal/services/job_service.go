package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/sirupsen/logrus"
)

// wakeBuffer bounds how many idle workers one burst of new jobs can wake at once
const wakeBuffer = 64

// JobService handles job creation and management
type JobService struct {
	jobRepo     *repositories.JobRepository
	insightRepo *repositories.InsightRepository
	projectRepo *repositories.ProjectRepository

	// serializes the check-then-create of analyze jobs
	mu      sync.Mutex
	signals map[models.JobType]chan struct{}
}

// NewJobService creates a new job service
func NewJobService(jobRepo *repositories.JobRepository, insightRepo *repositories.InsightRepository, projectRepo *repositories.ProjectRepository) *JobService {
	return &JobService{
		jobRepo:     jobRepo,
		insightRepo: insightRepo,
		projectRepo: projectRepo,
		signals: map[models.JobType]chan struct{}{
			models.JobTypeScrape:  make(chan struct{}, wakeBuffer),
			models.JobTypeAnalyze: make(chan struct{}, wakeBuffer),
		},
	}
}

// Signals returns the channel workers of jobType wait on for new work
func (s *JobService) Signals(jobType models.JobType) <-chan struct{} {
	return s.signals[jobType]
}

func (s *JobService) notify(jobType models.JobType) {
	select {
	case s.signals[jobType] <- struct{}{}:
	default:
	}
}

// DispatchAnalysis queues analysis of project for every language that still
// needs it and returns how many jobs were created. A language is skipped when
// its insight is completed (unless force) or a job for it is already queued.
func (s *JobService) DispatchAnalysis(ctx context.Context, project *models.Project, languages []string, force bool) (int, error) {
	jobs, err := s.dispatch(ctx, project, languages, force)
	return len(jobs), err
}

func (s *JobService) dispatch(ctx context.Context, project *models.Project, languages []string, force bool) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed, err := s.insightRepo.CompletedLanguages(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed insights: %w", err)
	}

	var jobs []*models.Job
	for _, language := range normalizeLanguages(languages) {
		if completed[language] && !force {
			continue
		}

		active, err := s.jobRepo.HasActiveAnalysis(ctx, project.ID, language)
		if err != nil {
			return jobs, fmt.Errorf("failed to check existing jobs: %w", err)
		}
		if active {
			continue
		}

		if _, _, err := s.insightRepo.GetOrMarkPending(ctx, project.ID, language); err != nil {
			return jobs, fmt.Errorf("failed to mark insight pending: %w", err)
		}

		job := models.NewAnalyzeJob(project.ID, language, force)
		if err := s.jobRepo.Create(ctx, job); err != nil {
			return jobs, fmt.Errorf("failed to create analyze job: %w", err)
		}
		jobs = append(jobs, job)
		s.notify(models.JobTypeAnalyze)

		logger.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"project":  project.FullName,
			"language": language,
			"force":    force,
		}).Debug("Created analyze job")
	}
	return jobs, nil
}

// Reanalyze forces regeneration of a project's insights and returns the created jobs
func (s *JobService) Reanalyze(ctx context.Context, owner, name string, languages []string) ([]*models.Job, error) {
	project, err := s.projectRepo.GetByName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, project, languages, true)
}

// DispatchMissing queues analysis for up to limit projects per language that
// have no completed insight yet
func (s *JobService) DispatchMissing(ctx context.Context, languages []string, limit int) (int, error) {
	dispatched := 0
	for _, language := range normalizeLanguages(languages) {
		projects, err := s.projectRepo.ListMissingInsight(ctx, language, limit)
		if err != nil {
			return dispatched, fmt.Errorf("failed to list projects without insights: %w", err)
		}
		for _, project := range projects {
			n, err := s.DispatchAnalysis(ctx, project, []string{language}, false)
			if err != nil {
				return dispatched, err
			}
			dispatched += n
		}
	}
	return dispatched, nil
}

// CreateScrapeJob queues a scrape run
func (s *JobService) CreateScrapeJob(ctx context.Context, req models.ScrapeRequest) (*models.Job, error) {
	if _, err := models.ParseTimeRange(string(req.TimeRange)); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}
	encoded := string(payload)

	job := models.NewJob(models.JobTypeScrape)
	job.Payload = &encoded
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create scrape job: %w", err)
	}
	s.notify(models.JobTypeScrape)

	logger.WithField("job_id", job.ID).Info("Created scrape job")
	return job, nil
}

// HasActiveScrape reports whether a scrape job is queued or running
func (s *JobService) HasActiveScrape(ctx context.Context) (bool, error) {
	return s.jobRepo.HasActiveOfType(ctx, models.JobTypeScrape)
}

// GetJob retrieves a job by its task id
func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// QueueStats returns job counts per type and status
func (s *JobService) QueueStats(ctx context.Context) (map[models.JobType]map[models.JobStatus]int, error) {
	stats := make(map[models.JobType]map[models.JobStatus]int)
	for _, jobType := range []models.JobType{models.JobTypeScrape, models.JobTypeAnalyze} {
		counts, err := s.jobRepo.CountByStatus(ctx, jobType)
		if err != nil {
			return nil, err
		}
		stats[jobType] = counts
	}
	return stats, nil
}

// normalizeLanguages lower-cases language codes and drops blanks and duplicates
func normalizeLanguages(languages []string) []string {
	seen := make(map[string]bool, len(languages))
	out := make([]string, 0, len(languages))
	for _, language := range languages {
		language = models.NormalizeLanguageCode(language)
		if language == "" || seen[language] {
			continue
		}
		seen[language] = true
		out = append(out, language)
	}
	return out
}
