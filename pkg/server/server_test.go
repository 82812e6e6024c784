package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/jobstore"
	"analysis-jobs-oci-serverless/pkg/upload"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	presigner, err := upload.NewLocalPresigner(baseURL, []byte("test-secret"))
	require.NoError(t, err)

	router := api.NewRouter(api.Config{
		BasePath:    "/api",
		URLTTL:      time.Hour,
		ContentType: "image/tiff",
		KeyTemplate: upload.DefaultKeyTemplate,
	}, jobstore.NewMemory(), presigner, api.WithLogger(logger))

	srv.Config.Handler = SetupRouter(&Dependencies{
		Router:    router,
		Logger:    logger,
		Uploads:   presigner,
		UploadDir: dir,
	})
	srv.Start()
	t.Cleanup(srv.Close)

	return srv, dir
}

func do(t *testing.T, method, rawURL, contentType string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, rawURL, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_AnalyzeUploadResults(t *testing.T) {
	srv, dir := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/analyze", "application/json", []byte(`{"coordinates":{"lat":-10.9,"lon":-62.5}}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var created api.AnalyzeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	payload := []byte("II*\x00fake tiff")
	resp = do(t, http.MethodPut, created.UploadURL, "image/tiff", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := os.ReadFile(filepath.Join(dir, "raw-data", "sentinel2", created.JobID+"_input.tif"))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	resp = do(t, http.MethodGet, srv.URL+"/api/results/"+created.JobID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.ResultsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "PENDING", string(got.Status))
	assert.Equal(t, "0", got.UrbanPct)
}

func TestServer_UploadRejected(t *testing.T) {
	srv, dir := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/analyze", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created api.AnalyzeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	t.Run("wrong content type", func(t *testing.T) {
		resp := do(t, http.MethodPut, created.UploadURL, "image/png", []byte("png"))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("tampered signature", func(t *testing.T) {
		u, err := url.Parse(created.UploadURL)
		require.NoError(t, err)
		q := u.Query()
		q.Set("signature", "deadbeef")
		u.RawQuery = q.Encode()

		resp := do(t, http.MethodPut, u.String(), "image/tiff", []byte("tiff"))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServer_DelegatesToRouter(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"preflight", http.MethodOptions, "/api/analyze", http.StatusOK},
		{"preflight on upload route", http.MethodOptions, "/uploads/raw-data/x.tif", http.StatusOK},
		{"unknown job", http.MethodGet, "/api/results/nonexistent", http.StatusNotFound},
		{"unknown route", http.MethodDelete, "/api/jobs", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, "", nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "GET,POST,PUT,DELETE,OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
