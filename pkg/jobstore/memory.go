// Package jobstore provides job.Store implementations backed by OCI NoSQL,
// DynamoDB, PostgreSQL and process memory.
package jobstore

import (
	"context"
	"maps"
	"sync"

	"analysis-jobs-oci-serverless/pkg/job"
)

// Memory keeps jobs in a map. It is used by the local server and tests.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]job.Job
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]job.Job)}
}

func (m *Memory) Create(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.JobID]; ok {
		return job.ErrAlreadyExists
	}
	stored := *j
	stored.Coordinates = maps.Clone(j.Coordinates)
	m.jobs[j.JobID] = stored
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, job.ErrNotFound
	}
	j.Coordinates = maps.Clone(j.Coordinates)
	return &j, nil
}
