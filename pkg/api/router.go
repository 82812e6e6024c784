// Package api routes analysis requests to the analyze and results handlers
// and turns their outcome into responses that always carry CORS headers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"analysis-jobs-oci-serverless/pkg/job"
	"analysis-jobs-oci-serverless/pkg/queue"
	"analysis-jobs-oci-serverless/pkg/upload"

	"github.com/google/uuid"
)

const (
	analyzePath   = "/analyze"
	resultsPrefix = "/results/"
)

// Config holds the handler settings injected at startup.
type Config struct {
	BasePath    string
	URLTTL      time.Duration
	ContentType string
	KeyTemplate string
}

// Router dispatches requests by method and path.
type Router struct {
	cfg       Config
	store     job.Store
	presigner upload.Presigner
	notifier  queue.Notifier
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes a Router.
type Option func(*Router)

// WithNotifier publishes a JobCreated event after each analyze call.
func WithNotifier(n queue.Notifier) Option {
	return func(r *Router) { r.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Router) { r.newID = newID }
}

// NewRouter creates a router over store and presigner.
func NewRouter(cfg Config, store job.Store, presigner upload.Presigner, opts ...Option) *Router {
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")

	r := &Router{
		cfg:       cfg,
		store:     store,
		presigner: presigner,
		notifier:  queue.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes req and never fails: handler errors and panics become
// error responses with the same headers as successful ones.
func (r *Router) Handle(ctx context.Context, req Request) (resp Response) {
	start := r.now()
	path := r.stripBasePath(req.Path)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			r.logger.Error("Recovered from panic",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Any("panic", p),
			)
			resp = r.respond(http.StatusInternalServerError, errorBody{Error: err.Error()})
		}

		r.logger.Info("Request handled",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", r.now().Sub(start)),
		)
	}()

	if req.Method == http.MethodOptions {
		return r.respond(http.StatusOK, messageBody{Message: "CORS preflight successful"})
	}

	var (
		res Result
		err error
	)
	switch {
	case req.Method == http.MethodPost && path == analyzePath:
		res, err = r.analyze(ctx, req)
	case req.Method == http.MethodGet && strings.HasPrefix(path, resultsPrefix):
		res, err = r.results(ctx, req, path)
	default:
		return r.respond(http.StatusNotFound, errorBody{Error: "Not found"})
	}

	if err != nil {
		return r.respondError(req, err)
	}
	return r.respond(res.StatusCode, res.Body)
}

func (r *Router) stripBasePath(path string) string {
	if r.cfg.BasePath == "" {
		return path
	}
	if trimmed, found := strings.CutPrefix(path, r.cfg.BasePath); found && strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return path
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// Fail builds the error response for a failure that happened before routing,
// such as an unreadable request body.
func (r *Router) Fail(req Request, err error) Response {
	return r.respondError(req, err)
}

func (r *Router) respondError(req Request, err error) Response {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return r.respond(http.StatusBadRequest, errorBody{Error: validation.Message})
	case errors.As(err, &notFound):
		return r.respond(http.StatusNotFound, errorBody{Error: notFound.Message})
	case errors.Is(err, job.ErrNotFound):
		return r.respond(http.StatusNotFound, errorBody{Error: "Job not found"})
	default:
		r.logger.Error("Request failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return r.respond(http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

// respond is the only place response headers are set.
func (r *Router) respond(status int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: err.Error()})
	}
	if status == 0 {
		status = http.StatusOK
	}
	return Response{
		StatusCode: status,
		Headers:    Headers(),
		Body:       data,
	}
}
