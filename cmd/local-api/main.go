package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analysis-jobs-oci-serverless/pkg/backend"
	"analysis-jobs-oci-serverless/pkg/config"
	"analysis-jobs-oci-serverless/pkg/logger"
	"analysis-jobs-oci-serverless/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("ANALYSIS_API_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/analysis-api/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	release := flag.Bool("release", false, "Run gin in release mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableSource,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	b, err := backend.New(context.Background(), cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}
	defer b.Close()

	if *release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := server.SetupRouter(&server.Dependencies{
		Router:    b.Router(cfg, appLogger),
		Logger:    appLogger,
		Uploads:   b.Local,
		UploadDir: cfg.Upload.LocalDir,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	appLogger.Info("Analysis API is running",
		slog.String("address", addr),
		slog.String("base_path", cfg.API.BasePath),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}
