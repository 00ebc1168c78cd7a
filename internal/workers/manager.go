package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Notifier hands out the wake channel for each job type
type Notifier interface {
	Signals(jobType models.JobType) <-chan struct{}
}

// ManagerConfig sets how many workers of each type run
type ManagerConfig struct {
	AnalysisWorkers int
	ScrapeWorkers   int
	PollInterval    time.Duration
}

// WorkerManager manages multiple workers of different types
type WorkerManager struct {
	workers     []Worker
	cfg         ManagerConfig
	jobRepo     *repositories.JobRepository
	projectRepo *repositories.ProjectRepository
	analyzer    Analyzer
	runner      ScrapeRunner
	notifier    Notifier
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerManager creates a new worker manager. A nil analyzer or runner
// disables the corresponding workers.
func NewWorkerManager(cfg ManagerConfig, jobRepo *repositories.JobRepository, projectRepo *repositories.ProjectRepository, analyzer Analyzer, runner ScrapeRunner, notifier Notifier) *WorkerManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerManager{
		workers:     make([]Worker, 0),
		cfg:         cfg,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		analyzer:    analyzer,
		runner:      runner,
		notifier:    notifier,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// StartAll starts the configured workers
func (wm *WorkerManager) StartAll() error {
	analysisWorkers := wm.cfg.AnalysisWorkers
	if wm.analyzer == nil {
		analysisWorkers = 0
	}
	scrapeWorkers := wm.cfg.ScrapeWorkers
	if wm.runner == nil {
		scrapeWorkers = 0
	}

	logger.WithFields(logrus.Fields{
		"analysis": analysisWorkers,
		"scrape":   scrapeWorkers,
	}).Info("Starting workers")

	for i := 0; i < analysisWorkers; i++ {
		worker := NewAnalysisWorker(fmt.Sprintf("analysis-%d", i+1), wm.jobRepo, wm.projectRepo, wm.analyzer, wm.wake(models.JobTypeAnalyze), wm.cfg.PollInterval)
		wm.workers = append(wm.workers, worker)
		wm.startWorker(worker)
	}

	for i := 0; i < scrapeWorkers; i++ {
		worker := NewScrapeWorker(fmt.Sprintf("scrape-%d", i+1), wm.jobRepo, wm.runner, wm.wake(models.JobTypeScrape), wm.cfg.PollInterval)
		wm.workers = append(wm.workers, worker)
		wm.startWorker(worker)
	}

	logger.Infof("Started %d total workers", len(wm.workers))
	return nil
}

// StopAll gracefully stops all workers. In-flight jobs interrupted by the
// shutdown are returned to the queue.
func (wm *WorkerManager) StopAll() error {
	logger.Info("Stopping all workers...")

	wm.cancel()

	for _, worker := range wm.workers {
		if err := worker.Stop(); err != nil {
			logger.WithError(err).WithField("worker_id", worker.GetWorkerID()).Error("Error stopping worker")
		}
	}

	wm.wg.Wait()

	logger.Info("All workers stopped")
	return nil
}

func (wm *WorkerManager) wake(jobType models.JobType) <-chan struct{} {
	if wm.notifier == nil {
		return nil
	}
	return wm.notifier.Signals(jobType)
}

// startWorker starts a single worker in a goroutine
func (wm *WorkerManager) startWorker(worker Worker) {
	wm.wg.Add(1)
	go func() {
		defer wm.wg.Done()
		if err := worker.Start(wm.ctx); err != nil && wm.ctx.Err() == nil {
			logger.WithError(err).WithField("worker_id", worker.GetWorkerID()).Error("Worker stopped with error")
		}
	}()
}

// GetWorkerStatus returns the status of all workers
func (wm *WorkerManager) GetWorkerStatus() map[string]bool {
	status := make(map[string]bool)
	for _, worker := range wm.workers {
		status[worker.GetWorkerID()] = worker.IsRunning()
	}
	return status
}
