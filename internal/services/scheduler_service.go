package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/gofrs/flock"
)

type SchedulerConfig struct {
	// IntervalHours of 24 means once a day at Hour (UTC)
	IntervalHours int
	Hour          int
	// LockPath is a file locked while a tick enqueues work; empty disables locking
	LockPath string
}

// SchedulerService enqueues scrape jobs on a fixed cadence
type SchedulerService struct {
	jobService  *JobService
	projectRepo *repositories.ProjectRepository
	cfg         SchedulerConfig
	lock        *flock.Flock
	now         func() time.Time
}

func NewSchedulerService(jobService *JobService, projectRepo *repositories.ProjectRepository, cfg SchedulerConfig) *SchedulerService {
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = 24
	}
	s := &SchedulerService{
		jobService:  jobService,
		projectRepo: projectRepo,
		cfg:         cfg,
		now:         time.Now,
	}
	if cfg.LockPath != "" {
		s.lock = flock.New(cfg.LockPath)
	}
	return s
}

// NextRun returns the first scheduled time strictly after now
func (s *SchedulerService) NextRun(now time.Time) time.Time {
	now = now.UTC()
	if s.cfg.IntervalHours == 24 {
		next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	return now.Add(time.Duration(s.cfg.IntervalHours) * time.Hour)
}

// StartScheduler runs the schedule loop until ctx is cancelled
func (s *SchedulerService) StartScheduler(ctx context.Context) {
	go func() {
		for {
			now := s.now()
			next := s.NextRun(now)
			logger.WithField("next_run", next.Format(time.RFC3339)).Info("Scrape scheduled")

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Info("Scheduler stopped")
				return
			case <-timer.C:
			}

			if _, err := s.Trigger(ctx); err != nil {
				logger.WithError(err).Error("Failed to schedule scrape")
			}
		}
	}()
}

// Trigger enqueues a scrape job unless another process holds the scheduler
// lock or a scrape is already queued. It returns nil without error when skipped.
func (s *SchedulerService) Trigger(ctx context.Context) (*models.Job, error) {
	if s.lock != nil {
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire scheduler lock: %w", err)
		}
		if !locked {
			logger.WithField("lock", s.cfg.LockPath).Info("Another scheduler holds the lock, skipping tick")
			return nil, nil
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				logger.WithError(err).Warn("Failed to release scheduler lock")
			}
		}()
	}

	active, err := s.jobService.HasActiveScrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check scrape queue: %w", err)
	}
	if active {
		logger.Info("A scrape is already queued, skipping tick")
		return nil, nil
	}

	return s.jobService.CreateScrapeJob(ctx, models.ScrapeRequest{})
}

// Bootstrap queues an initial scrape when no project has been stored yet
func (s *SchedulerService) Bootstrap(ctx context.Context) (*models.Job, error) {
	count, err := s.projectRepo.Count(ctx, models.ProjectFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if count > 0 {
		return nil, nil
	}
	logger.Info("Database is empty, queueing initial scrape")
	return s.Trigger(ctx)
}
