package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	JobTypeScrape  JobType = "scrape"
	JobTypeAnalyze JobType = "analyze"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a queued unit of background work. Analyze jobs carry the
// (project, language) key they regenerate; scrape jobs carry a ScrapeRequest payload.
type Job struct {
	ID           string     `json:"id"`
	JobType      JobType    `json:"job_type"`
	Status       JobStatus  `json:"status"`
	ProjectID    *int64     `json:"project_id,omitempty"`
	Language     *string    `json:"language,omitempty"`
	Payload      *string    `json:"payload,omitempty"`
	Result       *string    `json:"result,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	WorkerID     *string    `json:"worker_id,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJob creates a new Job with a generated UUID
func NewJob(jobType JobType) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		JobType:   jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewAnalyzeJob creates a pending analysis job for one (project, language) key
func NewAnalyzeJob(projectID int64, language string, force bool) *Job {
	job := NewJob(JobTypeAnalyze)
	job.ProjectID = &projectID
	job.Language = &language
	if force {
		payload := `{"force":true}`
		job.Payload = &payload
	}
	return job
}

// MarkStarted marks the job as started
func (j *Job) MarkStarted(workerID string) {
	now := time.Now()
	j.Status = JobStatusInProgress
	j.StartedAt = &now
	j.WorkerID = &workerID
}

// MarkCompleted marks the job as completed
func (j *Job) MarkCompleted(result string) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	if result != "" {
		j.Result = &result
	}
}

// MarkFailed marks the job as failed
func (j *Job) MarkFailed(message string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = &message
}

// AnalyzePayload is the JSON payload of an analyze job
type AnalyzePayload struct {
	Force bool `json:"force"`
}

// ScrapeRequest is the JSON payload of a scrape job
type ScrapeRequest struct {
	Languages []string  `json:"languages,omitempty"`
	TimeRange TimeRange `json:"time_range,omitempty"`
	Force     bool      `json:"force,omitempty"`
}
