package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
)

// ScrapeRunner performs one scrape run
type ScrapeRunner interface {
	RunOnce(ctx context.Context, req models.ScrapeRequest) (*models.RunStats, error)
}

// ScrapeWorker handles scrape jobs
type ScrapeWorker struct {
	*BaseWorker
	runner ScrapeRunner
}

// NewScrapeWorker creates a new scrape worker
func NewScrapeWorker(workerID string, jobRepo *repositories.JobRepository, runner ScrapeRunner, wake <-chan struct{}, pollInterval time.Duration) *ScrapeWorker {
	return &ScrapeWorker{
		BaseWorker: NewBaseWorker(workerID, models.JobTypeScrape, jobRepo, wake, pollInterval),
		runner:     runner,
	}
}

// Start begins the scrape worker process
func (w *ScrapeWorker) Start(ctx context.Context) error {
	return w.run(ctx, w.processScrapeJob)
}

func (w *ScrapeWorker) processScrapeJob(ctx context.Context, job *models.Job) error {
	log := w.log().WithField("job_id", job.ID)

	var req models.ScrapeRequest
	if job.Payload != nil && *job.Payload != "" {
		if err := json.Unmarshal([]byte(*job.Payload), &req); err != nil {
			job.MarkFailed("malformed scrape request: " + err.Error())
			w.save(ctx, job)
			return nil
		}
	}

	log.Info("Processing scrape job")
	stats, err := w.runner.RunOnce(ctx, req)
	if err != nil && ctx.Err() != nil {
		w.requeue(ctx, job)
		return nil
	}

	var result string
	if stats != nil {
		encoded, _ := json.Marshal(stats)
		result = string(encoded)
	}

	if err != nil {
		job.MarkFailed(err.Error())
		if result != "" {
			job.Result = &result
		}
		w.save(ctx, job)
		log.WithError(err).Error("Scrape job failed")
		return nil
	}

	job.MarkCompleted(result)
	w.save(ctx, job)
	log.Info("Scrape job completed")
	return nil
}
