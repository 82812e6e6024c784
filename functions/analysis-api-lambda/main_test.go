package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/job"
	"analysis-jobs-oci-serverless/pkg/jobstore"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPresigner struct{}

func (stubPresigner) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://bucket.s3.amazonaws.com/" + key, nil
}

func testHandler() func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	router := api.NewRouter(api.Config{URLTTL: time.Hour, ContentType: "image/tiff"},
		jobstore.NewMemory(), stubPresigner{},
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return newHandler(router)
}

func TestHandler_AnalyzeAndResults(t *testing.T) {
	h := testHandler()

	resp, err := h(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/analyze",
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"coordinates":{"lat":-10,"lon":-63}}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

	var created api.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))

	resp, err = h(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Path:           "/results/" + created.JobID,
		PathParameters: map[string]string{"job_id": created.JobID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.ResultsResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	assert.Equal(t, created.JobID, got.JobID)
	assert.Equal(t, job.Coordinates{"lat": -10.0, "lon": -63.0}, got.Coordinates)
}

func TestHandler_BadBase64(t *testing.T) {
	resp, err := testHandler()(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/analyze",
		Body:            "!!not base64!!",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "86400", resp.Headers["Access-Control-Max-Age"])
	assert.Contains(t, resp.Body, "failed to decode request body")
}

func TestHandler_Preflight(t *testing.T) {
	resp, err := testHandler()(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodOptions,
		Path:       "/results/abc",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"CORS preflight successful"}`, resp.Body)
}
