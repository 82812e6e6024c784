// Package client drives the analyze, upload and poll flow against a
// deployed analysis API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/job"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 60
)

var (
	// ErrJobFailed is returned by Poll when the processor marks the job FAILED.
	ErrJobFailed = errors.New("analysis job failed")

	// ErrPollTimeout is returned by Poll when the attempts run out.
	ErrPollTimeout = errors.New("polling timed out")

	// ErrUnexpectedStatus is returned by Poll when the API reports an unknown
	// status or one the previous status cannot move to.
	ErrUnexpectedStatus = errors.New("unexpected job status")
)

// StatusError reports a non-success response from the API or upload target.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to %s: %d - %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the analysis API rooted at BaseURL, e.g.
// "https://abc.execute-api.us-west-2.amazonaws.com/dev".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. A nil httpClient uses one with a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BoundingBox is a map selection in degrees.
type BoundingBox struct {
	North, South, East, West float64
}

// Center returns the midpoint of b as {"lat", "lon"} job coordinates.
func (b BoundingBox) Center() job.Coordinates {
	return job.Coordinates{
		"lat": (b.North + b.South) / 2,
		"lon": (b.East + b.West) / 2,
	}
}

// Analyze creates a job and returns its upload URL.
func (c *Client) Analyze(ctx context.Context, coords job.Coordinates) (*api.AnalyzeResponse, error) {
	body, err := json.Marshal(api.AnalyzeRequest{Coordinates: coords})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out api.AnalyzeResponse
	if err := c.doJSON(req, "initialize analysis", &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("failed to initialize analysis: response has no job_id")
	}
	return &out, nil
}

// Upload PUTs r to a URL returned by Analyze.
func (c *Client) Upload(ctx context.Context, uploadURL, contentType string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("upload file", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Results fetches the current state of a job.
func (c *Client) Results(ctx context.Context, jobID string) (*api.ResultsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var out api.ResultsResponse
	if err := c.doJSON(req, "get job results", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollOptions controls Poll. Zero values take the defaults.
type PollOptions struct {
	Interval     time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	// OnProgress is called after every successful Results call.
	OnProgress func(status job.Status, attempt int)
}

// Poll calls Results until the job is COMPLETED. A FAILED job returns
// ErrJobFailed alongside the last response. Statuses must move forward
// through the job lifecycle; anything else stops polling with
// ErrUnexpectedStatus.
func (c *Client) Poll(ctx context.Context, jobID string, opts PollOptions) (*api.ResultsResponse, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollMaxAttempts
	}

	if err := sleep(ctx, opts.InitialDelay); err != nil {
		return nil, err
	}

	var last job.Status
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res, err := c.Results(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if !res.Status.Valid() {
			return res, fmt.Errorf("%w: %q", ErrUnexpectedStatus, res.Status)
		}
		if last != "" && !reachable(last, res.Status) {
			return res, fmt.Errorf("%w: %s after %s", ErrUnexpectedStatus, res.Status, last)
		}
		last = res.Status

		if opts.OnProgress != nil {
			opts.OnProgress(res.Status, attempt)
		}

		if res.Status.IsTerminal() {
			if res.Status == job.StatusCompleted {
				return res, nil
			}
			if res.Message != "" {
				return res, fmt.Errorf("%w: %s", ErrJobFailed, res.Message)
			}
			return res, ErrJobFailed
		}

		if attempt < opts.MaxAttempts {
			if err := sleep(ctx, opts.Interval); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, opts.MaxAttempts)
}

// Run creates a job, uploads r and polls until the job finishes.
func (c *Client) Run(ctx context.Context, coords job.Coordinates, contentType string, r io.Reader, opts PollOptions) (*api.ResultsResponse, error) {
	created, err := c.Analyze(ctx, coords)
	if err != nil {
		return nil, err
	}

	if err := c.Upload(ctx, created.UploadURL, contentType, r); err != nil {
		return nil, err
	}

	return c.Poll(ctx, created.JobID, opts)
}

// reachable reports whether a poll may observe to after from. Statuses the
// job passed through between two polls are allowed.
func reachable(from, to job.Status) bool {
	if from == to || job.CanTransition(from, to) {
		return true
	}
	for _, mid := range []job.Status{job.StatusPending, job.StatusProcessing, job.StatusCompleted, job.StatusFailed} {
		if job.CanTransition(from, mid) && job.CanTransition(mid, to) {
			return true
		}
	}
	return false
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to %s: decode response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
