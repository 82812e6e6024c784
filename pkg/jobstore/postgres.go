package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	coordinates JSONB NOT NULL DEFAULT '{}',
	s3_key      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT '',
	urban_pct   TEXT NOT NULL DEFAULT '',
	created_at  BIGINT NOT NULL,
	updated_at  BIGINT NOT NULL
)`

// PostgresConfig holds the connection pool settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres stores jobs in a single jobs table keyed by job_id.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects, verifies the connection and ensures the jobs table exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	logger.Info("Connecting to PostgreSQL")

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs table: %w", err)
	}

	logger.Info("PostgreSQL job store ready")
	return &Postgres{db: db}, nil
}

// Close closes the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

type jobRow struct {
	JobID       string `db:"job_id"`
	Status      string `db:"status"`
	Coordinates string `db:"coordinates"`
	S3Key       string `db:"s3_key"`
	Message     string `db:"message"`
	Severity    string `db:"severity"`
	UrbanPct    string `db:"urban_pct"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func newJobRow(j *job.Job) (*jobRow, error) {
	coords := []byte("{}")
	if j.Coordinates != nil {
		var err error
		if coords, err = json.Marshal(j.Coordinates); err != nil {
			return nil, fmt.Errorf("failed to encode coordinates: %w", err)
		}
	}
	return &jobRow{
		JobID:       j.JobID,
		Status:      string(j.Status),
		Coordinates: string(coords),
		S3Key:       j.S3Key,
		Message:     j.Message,
		Severity:    j.Severity,
		UrbanPct:    j.UrbanPct,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}, nil
}

func (r *jobRow) toJob() (*job.Job, error) {
	j := &job.Job{
		JobID:     r.JobID,
		Status:    job.Status(r.Status),
		S3Key:     r.S3Key,
		Message:   r.Message,
		Severity:  r.Severity,
		UrbanPct:  r.UrbanPct,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Coordinates != "" {
		if err := json.Unmarshal([]byte(r.Coordinates), &j.Coordinates); err != nil {
			return nil, fmt.Errorf("failed to decode coordinates: %w", err)
		}
	}
	return j, nil
}

func (s *Postgres) Create(ctx context.Context, j *job.Job) error {
	row, err := newJobRow(j)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (
			job_id, status, coordinates, s3_key,
			message, severity, urban_pct, created_at, updated_at
		) VALUES (
			:job_id, :status, :coordinates, :s3_key,
			:message, :severity, :urban_pct, :created_at, :updated_at
		)
		ON CONFLICT (job_id) DO NOTHING
	`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if n == 0 {
		return job.ErrAlreadyExists
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, jobID string) (*job.Job, error) {
	query := `
		SELECT
			job_id, status, coordinates, s3_key,
			message, severity, urban_pct, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toJob()
}
