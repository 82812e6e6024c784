package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"analysis-jobs-oci-serverless/pkg/job"
)

// ResultsResponse is the GET /results/{job_id} body. Fields the processor
// has not written yet are reported with their defaults.
type ResultsResponse struct {
	JobID       string          `json:"job_id"`
	Status      job.Status      `json:"status"`
	Message     string          `json:"message"`
	Severity    string          `json:"severity"`
	UrbanPct    string          `json:"urban_pct"`
	Coordinates job.Coordinates `json:"coordinates"`
	CreatedAt   int64           `json:"created_at"`
	UpdatedAt   int64           `json:"updated_at"`
}

func (r *Router) results(ctx context.Context, req Request, path string) (Result, error) {
	jobID := req.PathParameters["job_id"]
	if jobID == "" {
		jobID = strings.TrimPrefix(path, resultsPrefix)
	}
	if jobID == "" {
		return Result{}, &ValidationError{Message: "job_id is required"}
	}

	j, err := r.store.Get(ctx, jobID)
	if errors.Is(err, job.ErrNotFound) {
		return Result{}, &NotFoundError{Message: "Job not found"}
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	urbanPct := j.UrbanPct
	if urbanPct == "" {
		urbanPct = "0"
	}

	coords := j.Coordinates
	if coords == nil {
		coords = job.Coordinates{}
	}

	return ok(ResultsResponse{
		JobID:       jobID,
		Status:      j.Status,
		Message:     j.Message,
		Severity:    j.Severity,
		UrbanPct:    urbanPct,
		Coordinates: coords,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}), nil
}
