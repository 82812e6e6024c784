package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/backend"
	"analysis-jobs-oci-serverless/pkg/config"
	"analysis-jobs-oci-serverless/pkg/logger"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// Lambda defaults to the AWS backends; env still overrides.
	if _, set := os.LookupEnv("UPLOAD_BACKEND"); !set {
		cfg.Upload.Backend = config.UploadS3
	}
	if _, set := os.LookupEnv("JOB_STORE"); !set {
		cfg.Store.Backend = config.StoreDynamoDB
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

	lambda.Start(newHandler(b.Router(cfg, log)))
}

func newHandler(router *api.Router) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, err := toRequest(event)
		if err != nil {
			return toResponse(router.Fail(req, err)), nil
		}
		return toResponse(router.Handle(ctx, req)), nil
	}
}

func toRequest(event events.APIGatewayProxyRequest) (api.Request, error) {
	req := api.Request{
		Method:         event.HTTPMethod,
		Path:           event.Path,
		PathParameters: event.PathParameters,
		Headers:        event.Headers,
	}

	if event.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return req, fmt.Errorf("failed to decode request body: %w", err)
		}
		req.Body = body
	} else {
		req.Body = []byte(event.Body)
	}
	return req, nil
}

func toResponse(resp api.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}
}
