package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"analysis-jobs-oci-serverless/pkg/job"
	"analysis-jobs-oci-serverless/pkg/queue"
	"analysis-jobs-oci-serverless/pkg/upload"
)

const analyzeMessage = "Job created. Use upload_url to PUT your TIF file."

// AnalyzeRequest is the optional POST /analyze body.
type AnalyzeRequest struct {
	Coordinates job.Coordinates `json:"coordinates"`
}

// AnalyzeResponse is returned once the job record exists.
type AnalyzeResponse struct {
	JobID     string `json:"job_id"`
	UploadURL string `json:"upload_url"`
	Message   string `json:"message"`
}

func (r *Router) analyze(ctx context.Context, req Request) (Result, error) {
	var body AnalyzeRequest
	if len(bytes.TrimSpace(req.Body)) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return Result{}, fmt.Errorf("failed to decode request body: %w", err)
		}
	}

	if body.Coordinates == nil {
		body.Coordinates = job.Coordinates{}
	}

	jobID := r.newID()
	key := upload.ObjectKey(r.cfg.KeyTemplate, jobID)

	uploadURL, err := r.presigner.PresignPut(ctx, key, r.cfg.ContentType, r.cfg.URLTTL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to issue upload url: %w", err)
	}

	now := r.now().Unix()
	j := &job.Job{
		JobID:       jobID,
		Status:      job.StatusPending,
		Coordinates: body.Coordinates,
		S3Key:       key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Create(ctx, j); err != nil {
		return Result{}, fmt.Errorf("failed to create job %s: %w", jobID, err)
	}

	event := queue.JobCreated{
		JobID:       jobID,
		ObjectKey:   key,
		Coordinates: body.Coordinates,
		CreatedAt:   now,
	}
	if err := r.notifier.JobCreated(ctx, event); err != nil {
		r.logger.Warn("Failed to publish job-created event",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	r.logger.Info("Job created", slog.String("job_id", jobID), slog.String("key", key))

	return ok(AnalyzeResponse{
		JobID:     jobID,
		UploadURL: uploadURL,
		Message:   analyzeMessage,
	}), nil
}
