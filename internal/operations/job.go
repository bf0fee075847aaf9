// Package operations runs statistical analyses asynchronously on a
// bounded worker pool. Jobs move pending -> running -> completed, failed
// or cancelled; transient failures are retried with exponential backoff
// and progress is pushed to subscribers through a ProgressSink.
package operations

import (
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one async analysis run.
type Job struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"` // handler name, e.g. "anova", "sqc_xbar_r"
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`

	// Payload is the analysis request; Result the handler's output.
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`

	// Attempts counts executions so far; MaxAttempts caps retries.
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobStore is the persistence contract for jobs.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter narrows ListJobs. Zero values mean no constraint.
type JobFilter struct {
	Status JobStatus
	Kind   string
	Since  time.Time
	Limit  int
}

// ErrJobNotFound is returned by stores for unknown job ids.
var ErrJobNotFound = errors.New("operations: job not found")

// ErrUnknownKind is returned when enqueueing a kind with no handler.
var ErrUnknownKind = errors.New("operations: unknown job kind")

// transientError marks a failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the queue retries the job with backoff instead
// of failing it outright.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
