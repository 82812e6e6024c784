package jobstore

import (
	"context"
	"testing"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob(id string) *job.Job {
	return &job.Job{
		JobID:       id,
		Status:      job.StatusPending,
		Coordinates: job.Coordinates{"lat": -10.0, "lon": -63.0},
		S3Key:       "raw-data/sentinel2/" + id + "_input.tif",
		CreatedAt:   1700000000,
		UpdatedAt:   1700000000,
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, job.ErrNotFound)

	j := sampleJob("job-1")
	require.NoError(t, s.Create(ctx, j))
	assert.ErrorIs(t, s.Create(ctx, sampleJob("job-1")), job.ErrAlreadyExists)

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, j, got)

	// Neither the caller's job nor returned jobs alias the stored record.
	got.Status = job.StatusFailed
	got.Coordinates["lat"] = 0.0
	j.Coordinates["crs"] = "EPSG:4326"

	again, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, again.Status)
	assert.Equal(t, job.Coordinates{"lat": -10.0, "lon": -63.0}, again.Coordinates)
}

func TestMemory_ProcessorFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	done := sampleJob("job-2")
	done.Status = job.StatusCompleted
	done.UrbanPct = "25.4"
	done.Coordinates = nil
	require.NoError(t, s.Create(ctx, done))

	got, err := s.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, "25.4", got.UrbanPct)
	assert.Nil(t, got.Coordinates)
}
