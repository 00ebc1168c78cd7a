package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Worker interface defines the contract for all workers
type Worker interface {
	// Start runs the worker until ctx is cancelled, Stop is called or a fatal error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the worker
	Stop() error

	// GetJobType returns the type of job this worker handles
	GetJobType() models.JobType

	// GetWorkerID returns the unique identifier for this worker
	GetWorkerID() string

	IsRunning() bool
}

// BaseWorker provides the claim loop shared by all workers
type BaseWorker struct {
	WorkerID     string
	JobType      models.JobType
	StopChan     chan struct{}
	jobRepo      *repositories.JobRepository
	wake         <-chan struct{}
	pollInterval time.Duration
	running      atomic.Bool
	stopOnce     sync.Once
}

// NewBaseWorker creates a new base worker. wake may be nil, in which case
// the worker only polls.
func NewBaseWorker(workerID string, jobType models.JobType, jobRepo *repositories.JobRepository, wake <-chan struct{}, pollInterval time.Duration) *BaseWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &BaseWorker{
		WorkerID:     workerID,
		JobType:      jobType,
		StopChan:     make(chan struct{}),
		jobRepo:      jobRepo,
		wake:         wake,
		pollInterval: pollInterval,
	}
}

// GetJobType returns the job type this worker handles
func (w *BaseWorker) GetJobType() models.JobType {
	return w.JobType
}

// GetWorkerID returns the worker's unique identifier
func (w *BaseWorker) GetWorkerID() string {
	return w.WorkerID
}

// Stop gracefully stops the worker
func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() { close(w.StopChan) })
	return nil
}

// IsRunning checks if the worker is currently running
func (w *BaseWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *BaseWorker) log() *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"worker_id": w.WorkerID,
		"job_type":  w.JobType,
	})
}

// run claims jobs one at a time and hands them to process. Between empty
// claims it sleeps until the poll interval elapses or a wake signal arrives.
// An error from process stops the loop and is returned.
func (w *BaseWorker) run(ctx context.Context, process func(ctx context.Context, job *models.Job) error) error {
	w.running.Store(true)
	defer w.running.Store(false)
	w.log().Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log().Info("Worker stopping due to context cancellation")
			return ctx.Err()
		case <-w.StopChan:
			w.log().Info("Worker stopping")
			return nil
		default:
		}

		job, err := w.jobRepo.ClaimNext(ctx, w.JobType, w.WorkerID)
		if err != nil && ctx.Err() == nil {
			w.log().WithError(err).Error("Failed to claim job")
		}
		if job != nil {
			if err := process(ctx, job); err != nil {
				return err
			}
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-w.StopChan:
			timer.Stop()
		case <-w.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// save stores the final state of a job. It uses a context that survives
// shutdown so a finished job is never left in progress.
func (w *BaseWorker) save(ctx context.Context, job *models.Job) {
	if err := w.jobRepo.Update(context.WithoutCancel(ctx), job); err != nil {
		w.log().WithError(err).WithField("job_id", job.ID).Error("Failed to update job")
	}
}

// requeue hands an interrupted job back to the queue
func (w *BaseWorker) requeue(ctx context.Context, job *models.Job) {
	job.Status = models.JobStatusPending
	job.WorkerID = nil
	job.StartedAt = nil
	w.save(ctx, job)
	w.log().WithField("job_id", job.ID).Info("Job interrupted, returned to queue")
}
