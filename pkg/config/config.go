// Package config loads the analysis API configuration from YAML and the
// function environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Upload backends
const (
	UploadOCI   = "oci"
	UploadS3    = "s3"
	UploadLocal = "local"
)

// Job store backends
const (
	StoreMemory   = "memory"
	StoreNoSQL    = "nosql"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Notification backends
const (
	NotifyNone     = "none"
	NotifyOCIQueue = "oci_queue"
	NotifyRabbitMQ = "rabbitmq"
)

// OCI authentication modes
const (
	AuthResourcePrincipal = "resource_principal"
	AuthInstancePrincipal = "instance_principal"
	AuthConfigFile        = "config_file"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Upload   UploadConfig   `yaml:"upload"`
	Store    StoreConfig    `yaml:"store"`
	OCI      OCIConfig      `yaml:"oci"`
	AWS      AWSConfig      `yaml:"aws"`
	Postgres PostgresConfig `yaml:"postgres"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// APIConfig holds routing settings
type APIConfig struct {
	// BasePath is stripped from request paths before routing, e.g. "/api".
	BasePath string `yaml:"base_path"`
}

// UploadConfig describes the pre-signed upload target
type UploadConfig struct {
	Backend       string `yaml:"backend"`
	BucketName    string `yaml:"bucket_name"`
	URLTTLSeconds int    `yaml:"url_ttl_seconds"`
	ContentType   string `yaml:"content_type"`
	KeyTemplate   string `yaml:"key_template"`
	// LocalBaseURL and LocalDir are used by the local backend only.
	LocalBaseURL string `yaml:"local_base_url"`
	LocalDir     string `yaml:"local_dir"`
}

// URLTTL returns the upload URL validity.
func (u UploadConfig) URLTTL() time.Duration {
	return time.Duration(u.URLTTLSeconds) * time.Second
}

// StoreConfig selects the job store
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	TableName string `yaml:"table_name"`
}

// OCIConfig holds Oracle Cloud settings shared by Object Storage, NoSQL and Queue
type OCIConfig struct {
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`
	CompartmentID string `yaml:"compartment_id"`
	Auth          string `yaml:"auth"`
}

// AWSConfig holds AWS settings shared by S3 and DynamoDB
type AWSConfig struct {
	Region string `yaml:"region"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NotifyConfig selects where job-created events go
type NotifyConfig struct {
	Backend       string `yaml:"backend"`
	QueueID       string `yaml:"queue_id"`
	QueueEndpoint string `yaml:"queue_endpoint"`
	AMQPURL       string `yaml:"amqp_url"`
	AMQPQueue     string `yaml:"amqp_queue"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

// ServerConfig holds local HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the settings the API was first deployed with.
func Default() *Config {
	return &Config{
		Upload: UploadConfig{
			Backend:       UploadOCI,
			BucketName:    "landuse-rondonia-data-dev",
			URLTTLSeconds: 3600,
			ContentType:   "image/tiff",
			KeyTemplate:   "raw-data/sentinel2/{job_id}_input.tif",
			LocalBaseURL:  "http://localhost:8080",
			LocalDir:      "tmp/uploads",
		},
		Store: StoreConfig{
			Backend:   StoreNoSQL,
			TableName: "jobs",
		},
		OCI: OCIConfig{
			Auth: AuthResourcePrincipal,
		},
		Notify: NotifyConfig{
			Backend: NotifyNone,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// FromEnv returns Default with environment overrides applied. Function
// runtimes deliver their configuration this way.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	strVars := map[string]*string{
		"BASE_PATH":                &c.API.BasePath,
		"UPLOAD_BACKEND":           &c.Upload.Backend,
		"BUCKET_NAME":              &c.Upload.BucketName,
		"UPLOAD_CONTENT_TYPE":      &c.Upload.ContentType,
		"OBJECT_KEY_TEMPLATE":      &c.Upload.KeyTemplate,
		"LOCAL_UPLOAD_BASE_URL":    &c.Upload.LocalBaseURL,
		"LOCAL_UPLOAD_DIR":         &c.Upload.LocalDir,
		"JOB_STORE":                &c.Store.Backend,
		"TABLE_NAME":               &c.Store.TableName,
		"OCI_REGION":               &c.OCI.Region,
		"OBJECT_STORAGE_NAMESPACE": &c.OCI.Namespace,
		"COMPARTMENT_OCID":         &c.OCI.CompartmentID,
		"OCI_AUTH":                 &c.OCI.Auth,
		"AWS_REGION":               &c.AWS.Region,
		"DATABASE_URL":             &c.Postgres.DSN,
		"NOTIFY":                   &c.Notify.Backend,
		"QUEUE_OCID":               &c.Notify.QueueID,
		"QUEUE_ENDPOINT":           &c.Notify.QueueEndpoint,
		"AMQP_URL":                 &c.Notify.AMQPURL,
		"AMQP_QUEUE":               &c.Notify.AMQPQueue,
		"LOG_LEVEL":                &c.Logging.Level,
		"LOG_FORMAT":               &c.Logging.Format,
		"LOG_OUTPUT":               &c.Logging.Output,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"URL_TTL_SECONDS": &c.Upload.URLTTLSeconds,
		"PORT":            &c.Server.Port,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}

	return nil
}

// Validate checks the settings needed by the API handlers and the selected backends.
func (c *Config) Validate() error {
	if c.Upload.URLTTLSeconds <= 0 {
		return fmt.Errorf("upload url_ttl_seconds must be greater than 0")
	}

	if c.Upload.ContentType == "" {
		return fmt.Errorf("upload content_type is required")
	}

	switch c.Upload.Backend {
	case UploadOCI:
		if c.Upload.BucketName == "" {
			return fmt.Errorf("upload bucket_name is required")
		}
		if c.OCI.Region == "" || c.OCI.Namespace == "" {
			return fmt.Errorf("oci region and namespace are required for the oci upload backend")
		}
	case UploadS3:
		if c.Upload.BucketName == "" {
			return fmt.Errorf("upload bucket_name is required")
		}
	case UploadLocal:
		if c.Upload.LocalBaseURL == "" || c.Upload.LocalDir == "" {
			return fmt.Errorf("upload local_base_url and local_dir are required for the local upload backend")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", c.Upload.Backend)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreNoSQL:
		if c.Store.TableName == "" {
			return fmt.Errorf("store table_name is required")
		}
		if c.OCI.CompartmentID == "" {
			return fmt.Errorf("oci compartment_id is required for the nosql store")
		}
	case StoreDynamoDB:
		if c.Store.TableName == "" {
			return fmt.Errorf("store table_name is required")
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Notify.Backend {
	case NotifyNone, "":
	case NotifyOCIQueue:
		if c.Notify.QueueID == "" {
			return fmt.Errorf("notify queue_id is required for oci_queue")
		}
	case NotifyRabbitMQ:
		if c.Notify.AMQPURL == "" {
			return fmt.Errorf("notify amqp_url is required for rabbitmq")
		}
	default:
		return fmt.Errorf("unknown notify backend %q", c.Notify.Backend)
	}

	if c.UsesOCI() {
		switch c.OCI.Auth {
		case AuthResourcePrincipal, AuthInstancePrincipal, AuthConfigFile:
		default:
			return fmt.Errorf("unknown oci auth %q", c.OCI.Auth)
		}
	}

	return nil
}

// ValidateServer checks the local HTTP server settings.
func (c *Config) ValidateServer() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	return nil
}

// UsesAWS reports whether any selected backend needs an AWS config.
func (c *Config) UsesAWS() bool {
	return c.Upload.Backend == UploadS3 || c.Store.Backend == StoreDynamoDB
}

// UsesOCI reports whether any selected backend needs an OCI configuration provider.
func (c *Config) UsesOCI() bool {
	return c.Upload.Backend == UploadOCI || c.Store.Backend == StoreNoSQL || c.Notify.Backend == NotifyOCIQueue
}
