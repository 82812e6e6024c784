// Package upload issues time-limited write URLs for a single object key.
package upload

import (
	"context"
	"strings"
	"time"
)

// DefaultKeyTemplate places uploads next to the other Sentinel-2 inputs.
const DefaultKeyTemplate = "raw-data/sentinel2/{job_id}_input.tif"

// Presigner returns a URL that allows one PUT of key until ttl elapses.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// ObjectKey expands {job_id} in template.
func ObjectKey(template, jobID string) string {
	if template == "" {
		template = DefaultKeyTemplate
	}
	return strings.ReplaceAll(template, "{job_id}", jobID)
}
