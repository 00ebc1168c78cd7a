package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/internal/services"
	"github.com/sirupsen/logrus"
)

// Analyzer generates the insight of one project in one language
type Analyzer interface {
	Analyze(ctx context.Context, project *models.Project, language string, opts services.AnalyzeOptions) (*models.Insight, error)
}

// AnalysisWorker handles analyze jobs
type AnalysisWorker struct {
	*BaseWorker
	projectRepo *repositories.ProjectRepository
	analyzer    Analyzer
}

// NewAnalysisWorker creates a new analysis worker
func NewAnalysisWorker(workerID string, jobRepo *repositories.JobRepository, projectRepo *repositories.ProjectRepository, analyzer Analyzer, wake <-chan struct{}, pollInterval time.Duration) *AnalysisWorker {
	return &AnalysisWorker{
		BaseWorker:  NewBaseWorker(workerID, models.JobTypeAnalyze, jobRepo, wake, pollInterval),
		projectRepo: projectRepo,
		analyzer:    analyzer,
	}
}

// Start begins the analysis worker process
func (w *AnalysisWorker) Start(ctx context.Context) error {
	return w.run(ctx, w.processAnalyzeJob)
}

type analyzeResult struct {
	InsightID       int64                `json:"insight_id"`
	Status          models.InsightStatus `json:"status"`
	AnalysisVersion string               `json:"analysis_version,omitempty"`
}

// processAnalyzeJob runs one analyze job. Only configuration errors are
// returned, which stops the worker.
func (w *AnalysisWorker) processAnalyzeJob(ctx context.Context, job *models.Job) error {
	log := w.log().WithField("job_id", job.ID)

	if job.ProjectID == nil || job.Language == nil {
		job.MarkFailed("analyze job has no project or language")
		w.save(ctx, job)
		return nil
	}
	log = log.WithFields(logrus.Fields{"project_id": *job.ProjectID, "language": *job.Language})

	project, err := w.projectRepo.GetByID(ctx, *job.ProjectID)
	if err != nil {
		if ctx.Err() != nil {
			w.requeue(ctx, job)
			return nil
		}
		job.MarkFailed(fmt.Sprintf("failed to load project: %v", err))
		w.save(ctx, job)
		return nil
	}

	var payload models.AnalyzePayload
	if job.Payload != nil {
		if err := json.Unmarshal([]byte(*job.Payload), &payload); err != nil {
			log.WithError(err).Warn("Ignoring malformed analyze payload")
		}
	}

	log.Debug("Processing analyze job")
	insight, err := w.analyzer.Analyze(ctx, project, *job.Language, services.AnalyzeOptions{Force: payload.Force})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		w.requeue(ctx, job)
		return nil
	case errors.Is(err, models.ErrConfiguration):
		job.MarkFailed(err.Error())
		w.save(ctx, job)
		log.WithError(err).Error("Analysis is not configured, stopping worker")
		return err
	default:
		job.MarkFailed(err.Error())
		w.save(ctx, job)
		log.WithError(err).Error("Analyze job failed")
		return nil
	}

	if insight.Status == models.InsightStatusFailed {
		message := "insight generation failed"
		if insight.ErrorMessage != nil {
			message = *insight.ErrorMessage
		}
		job.MarkFailed(message)
		w.save(ctx, job)
		log.WithField("reason", message).Warn("Insight generation failed")
		return nil
	}

	result, _ := json.Marshal(analyzeResult{
		InsightID:       insight.ID,
		Status:          insight.Status,
		AnalysisVersion: insight.AnalysisVersion,
	})
	job.MarkCompleted(string(result))
	w.save(ctx, job)
	log.Info("Analyze job completed")
	return nil
}
