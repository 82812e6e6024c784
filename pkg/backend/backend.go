// Package backend builds the job store, upload presigner and notifier
// selected by configuration. Every entrypoint goes through New.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"analysis-jobs-oci-serverless/pkg/api"
	"analysis-jobs-oci-serverless/pkg/config"
	"analysis-jobs-oci-serverless/pkg/job"
	"analysis-jobs-oci-serverless/pkg/jobstore"
	"analysis-jobs-oci-serverless/pkg/queue"
	"analysis-jobs-oci-serverless/pkg/upload"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"
)

// Backends holds the constructed dependencies of the router.
type Backends struct {
	Store     job.Store
	Presigner upload.Presigner
	Notifier  queue.Notifier

	// Local is set when the local upload backend is selected so the
	// development server can verify uploads.
	Local *upload.LocalPresigner

	closers []func()
}

// Close releases connections opened by New.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Router builds an api.Router over the backends.
func (b *Backends) Router(cfg *config.Config, logger *slog.Logger) *api.Router {
	return api.NewRouter(api.Config{
		BasePath:    cfg.API.BasePath,
		URLTTL:      cfg.Upload.URLTTL(),
		ContentType: cfg.Upload.ContentType,
		KeyTemplate: cfg.Upload.KeyTemplate,
	}, b.Store, b.Presigner,
		api.WithNotifier(b.Notifier),
		api.WithLogger(logger),
	)
}

// New validates cfg and constructs the selected backends.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		provider common.ConfigurationProvider
		awsCfg   aws.Config
		err      error
	)
	if cfg.UsesOCI() {
		provider, err = ociProvider(cfg.OCI)
		if err != nil {
			return nil, err
		}
	}
	if cfg.UsesAWS() {
		awsCfg, err = loadAWSConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
	}

	b := &Backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	if err := b.buildPresigner(cfg, provider, awsCfg); err != nil {
		return nil, err
	}
	if err := b.buildStore(ctx, cfg, provider, awsCfg, logger); err != nil {
		return nil, err
	}
	if err := b.buildNotifier(cfg, provider, logger); err != nil {
		return nil, err
	}

	logger.Info("Backends ready",
		slog.String("upload", cfg.Upload.Backend),
		slog.String("store", cfg.Store.Backend),
		slog.String("notify", cfg.Notify.Backend),
	)

	ok = true
	return b, nil
}

func (b *Backends) buildPresigner(cfg *config.Config, provider common.ConfigurationProvider, awsCfg aws.Config) error {
	switch cfg.Upload.Backend {
	case config.UploadOCI:
		p, err := upload.NewOCIPresigner(provider, cfg.OCI.Namespace, cfg.Upload.BucketName, cfg.OCI.Region)
		if err != nil {
			return err
		}
		b.Presigner = p
	case config.UploadS3:
		b.Presigner = upload.NewS3Presigner(awsCfg, cfg.Upload.BucketName)
	case config.UploadLocal:
		p, err := upload.NewLocalPresigner(cfg.Upload.LocalBaseURL, nil)
		if err != nil {
			return err
		}
		b.Presigner = p
		b.Local = p
	}
	return nil
}

func (b *Backends) buildStore(ctx context.Context, cfg *config.Config, provider common.ConfigurationProvider, awsCfg aws.Config, logger *slog.Logger) error {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		b.Store = jobstore.NewMemory()
	case config.StoreNoSQL:
		s, err := jobstore.NewNoSQL(provider, cfg.Store.TableName, cfg.OCI.CompartmentID)
		if err != nil {
			return err
		}
		b.Store = s
	case config.StoreDynamoDB:
		b.Store = jobstore.NewDynamoDB(awsCfg, cfg.Store.TableName)
	case config.StorePostgres:
		s, err := jobstore.NewPostgres(ctx, jobstore.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return err
		}
		b.Store = s
		b.closers = append(b.closers, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close postgres", slog.String("error", err.Error()))
			}
		})
	}
	return nil
}

func (b *Backends) buildNotifier(cfg *config.Config, provider common.ConfigurationProvider, logger *slog.Logger) error {
	switch cfg.Notify.Backend {
	case config.NotifyOCIQueue:
		n, err := queue.NewOCIQueueNotifier(provider, cfg.Notify.QueueID, cfg.Notify.QueueEndpoint)
		if err != nil {
			return err
		}
		b.Notifier = n
	case config.NotifyRabbitMQ:
		n, err := queue.NewRabbitMQNotifier(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue, logger)
		if err != nil {
			return err
		}
		b.Notifier = n
		b.closers = append(b.closers, n.Close)
	default:
		b.Notifier = queue.Noop{}
	}
	return nil
}

// ociProvider returns the configuration provider for the selected auth
// mode. Functions use resource principals; the local server usually reads
// ~/.oci/config.
func ociProvider(cfg config.OCIConfig) (common.ConfigurationProvider, error) {
	switch cfg.Auth {
	case config.AuthResourcePrincipal:
		p, err := auth.ResourcePrincipalConfigurationProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get resource principal provider: %w", err)
		}
		return p, nil
	case config.AuthInstancePrincipal:
		p, err := auth.InstancePrincipalConfigurationProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get instance principal provider: %w", err)
		}
		return p, nil
	default:
		return common.DefaultConfigProvider(), nil
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
