// Package queue publishes job lifecycle notifications for the analysis
// processor.
package queue

import (
	"context"

	"analysis-jobs-oci-serverless/pkg/job"
)

// JobCreated is published once a job record exists and its upload URL has
// been issued.
type JobCreated struct {
	JobID       string          `json:"job_id"`
	ObjectKey   string          `json:"object_key"`
	Coordinates job.Coordinates `json:"coordinates"`
	CreatedAt   int64           `json:"created_at"`
}

// Notifier publishes JobCreated events.
type Notifier interface {
	JobCreated(ctx context.Context, event JobCreated) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) JobCreated(context.Context, JobCreated) error { return nil }
