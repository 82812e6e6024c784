// Package server exposes the analysis router over plain HTTP with gin for
// local development.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/upload"

	"github.com/gin-gonic/gin"
)

// Dependencies holds what the HTTP layer needs.
type Dependencies struct {
	Router *api.Router
	Logger *slog.Logger

	// Uploads and UploadDir enable the PUT /uploads/*key route that stands
	// in for the object store. Both are optional.
	Uploads   *upload.LocalPresigner
	UploadDir string
}

// SetupRouter configures the gin engine. Every path not handled here is
// delegated to the analysis router, which owns CORS and error responses.
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "analysis-api",
		})
	})

	if deps.Uploads != nil {
		h := &uploadHandler{presigner: deps.Uploads, dir: deps.UploadDir, logger: deps.Logger}
		r.PUT(upload.LocalUploadPrefix+"*key", h.put)
	}

	r.NoRoute(delegate(deps.Router))

	return r
}

func delegate(router *api.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := api.Request{
			Method:  c.Request.Method,
			Path:    c.Request.URL.Path,
			Headers: make(map[string]string, len(c.Request.Header)),
		}
		for k := range c.Request.Header {
			req.Headers[k] = c.Request.Header.Get(k)
		}

		var resp api.Response
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			resp = router.Fail(req, err)
		} else {
			req.Body = body
			resp = router.Handle(c.Request.Context(), req)
		}

		writeResponse(c, resp)
	}
}

func writeResponse(c *gin.Context, resp api.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], resp.Body)
}

type uploadHandler struct {
	presigner *upload.LocalPresigner
	dir       string
	logger    *slog.Logger
}

func (h *uploadHandler) put(c *gin.Context) {
	for k, v := range api.Headers() {
		c.Header(k, v)
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.presigner.Verify(key, c.GetHeader("Content-Type"), c.Request.URL.Query()); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	dst := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+key)))
	if err := writeFile(dst, c.Request.Body); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Stored upload", slog.String("key", key), slog.String("path", dst))
	c.Status(http.StatusOK)
}

func writeFile(dst string, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	_, err = io.Copy(f, r)
	return err
}
