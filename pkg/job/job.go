// Package job defines the analysis job record shared by the API handlers,
// the job stores and the polling client.
package job

import (
	"context"
	"errors"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var (
	// ErrNotFound is returned by a Store when no record exists for a job id.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned by a Store when Create hits an existing job id.
	ErrAlreadyExists = errors.New("job already exists")
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces PENDING -> PROCESSING -> {COMPLETED, FAILED}.
// A pending job may also fail directly when the processor rejects its input.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Coordinates is the caller supplied location object. Keys and values are
// not interpreted and are stored exactly as received.
type Coordinates map[string]any

// Job is the single record kept in the job store.
type Job struct {
	JobID       string      `json:"job_id" dynamodbav:"job_id"`
	Status      Status      `json:"status" dynamodbav:"status"`
	Coordinates Coordinates `json:"coordinates" dynamodbav:"coordinates"`
	S3Key       string      `json:"s3_key" dynamodbav:"s3_key"`

	// Written by the external processor only.
	Message  string `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Severity string `json:"severity,omitempty" dynamodbav:"severity,omitempty"`
	UrbanPct string `json:"urban_pct,omitempty" dynamodbav:"urban_pct,omitempty"`

	CreatedAt int64 `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt int64 `json:"updated_at" dynamodbav:"updated_at"`
}

// Store persists jobs keyed by job id.
type Store interface {
	// Create inserts a new record. It must not overwrite an existing job id.
	Create(ctx context.Context, j *Job) error
	// Get returns ErrNotFound when the job id is unknown.
	Get(ctx context.Context, jobID string) (*Job, error)
}
