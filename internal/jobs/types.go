// Package jobs defines the outbound notification jobs produced by the
// scheduler and the queue abstractions that deliver them.
package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType says which batch produced a notification.
type JobType string

const (
	JobTypeReminder      JobType = "reminder"
	JobTypeWeeklySummary JobType = "weekly_summary"
)

// JobStatus is the delivery state of a notification.
type JobStatus string

// A job moves pending -> running -> completed, or through retrying back to
// pending until MaxRetries is spent and it ends failed.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published with MaxRetries == 0.
// A negative MaxRetries disables retries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// NotificationJob delivers one message to one owner. PaymentID links a
// reminder to its recurring payment and is zero for weekly summaries.
type NotificationJob struct {
	JobID     string  `json:"job_id"`
	Type      JobType `json:"type"`
	OwnerID   int64   `json:"owner_id"`
	Text      string  `json:"text"`
	PaymentID int64   `json:"payment_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last delivery failure.
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *NotificationJob) GetID() string        { return j.JobID }
func (j *NotificationJob) GetType() JobType     { return j.Type }
func (j *NotificationJob) GetStatus() JobStatus { return j.Status }

// Publisher accepts notifications for asynchronous delivery.
type Publisher interface {
	// PublishNotification enqueues a notification, filling in the id,
	// status and retry defaults when unset.
	PublishNotification(ctx context.Context, job *NotificationJob) error
	Close() error
}

// Consumer runs a handler over published notifications.
type Consumer interface {
	// Start returns once the workers are running.
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for queued and in-flight deliveries, bounded by ctx.
	Stop(ctx context.Context) error
}

// JobHandler delivers one job. A returned error schedules a retry while
// retries remain.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps delivery state for inspection over the API.
type JobStore interface {
	// SaveJob inserts or replaces the job by id.
	SaveJob(ctx context.Context, job *NotificationJob) error
	// GetJob returns ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, jobID string) (*NotificationJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*NotificationJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything; Limit 0 means
// no limit.
type JobFilter struct {
	OwnerID int64
	Type    JobType
	Status  JobStatus
	Limit   int
	Offset  int
}
