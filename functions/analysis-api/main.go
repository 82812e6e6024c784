package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/backend"
	"analysis-jobs-oci-serverless/pkg/config"
	"analysis-jobs-oci-serverless/pkg/logger"

	"github.com/fnproject/fdk-go"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableSource,
	})
	if err != nil {
		slog.Error("Failed to create logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	b, err := backend.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize backends", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer b.Close()

	router := b.Router(cfg, log)

	fdk.Handle(fdk.HandlerFunc(func(ctx context.Context, in io.Reader, out io.Writer) {
		handle(ctx, router, in, out)
	}))
}

func handle(ctx context.Context, router *api.Router, in io.Reader, out io.Writer) {
	req := api.Request{}
	if hctx, ok := fdk.GetContext(ctx).(fdk.HTTPContext); ok {
		req.Method = hctx.RequestMethod()
		req.Path = requestPath(hctx.RequestURL())
		req.Headers = flattenHeader(hctx.Header())
	}

	var resp api.Response
	body, err := io.ReadAll(in)
	if err != nil {
		resp = router.Fail(req, fmt.Errorf("failed to read request body: %w", err))
	} else {
		req.Body = body
		resp = router.Handle(ctx, req)
	}

	for k, v := range resp.Headers {
		fdk.SetHeader(out, k, v)
	}
	fdk.WriteStatus(out, resp.StatusCode)
	out.Write(resp.Body)
}

// requestPath extracts the path from the gateway request URL, which may be
// absolute or path-only.
func requestPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
