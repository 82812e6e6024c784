package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"
)

// nosqlAPI is the subset of nosql.NosqlClient used by NoSQL.
type nosqlAPI interface {
	GetRow(ctx context.Context, request nosql.GetRowRequest) (nosql.GetRowResponse, error)
	UpdateRow(ctx context.Context, request nosql.UpdateRowRequest) (nosql.UpdateRowResponse, error)
}

// NoSQL stores jobs in an OCI NoSQL table created with:
//
//	CREATE TABLE jobs (job_id STRING, status STRING, coordinates JSON,
//	  s3_key STRING, message STRING, severity STRING, urban_pct STRING,
//	  created_at LONG, updated_at LONG, PRIMARY KEY(job_id))
type NoSQL struct {
	client        nosqlAPI
	table         string
	compartmentID string
}

// NewNoSQL creates a NoSQL client from an OCI configuration provider.
func NewNoSQL(provider common.ConfigurationProvider, table, compartmentID string) (*NoSQL, error) {
	client, err := nosql.NewNosqlClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create NoSQL client: %w", err)
	}
	return newNoSQL(client, table, compartmentID), nil
}

func newNoSQL(client nosqlAPI, table, compartmentID string) *NoSQL {
	return &NoSQL{
		client:        client,
		table:         table,
		compartmentID: compartmentID,
	}
}

func (s *NoSQL) Create(ctx context.Context, j *job.Job) error {
	value, err := toRow(j)
	if err != nil {
		return err
	}

	resp, err := s.client.UpdateRow(ctx, nosql.UpdateRowRequest{
		TableNameOrId: common.String(s.table),
		UpdateRowDetails: nosql.UpdateRowDetails{
			Value:         value,
			CompartmentId: common.String(s.compartmentID),
			Option:        nosql.UpdateRowDetailsOptionAbsent,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put job %s: %w", j.JobID, err)
	}

	// IF_ABSENT leaves Version nil when the key already exists.
	if resp.Version == nil {
		return job.ErrAlreadyExists
	}
	return nil
}

func (s *NoSQL) Get(ctx context.Context, jobID string) (*job.Job, error) {
	resp, err := s.client.GetRow(ctx, nosql.GetRowRequest{
		TableNameOrId: common.String(s.table),
		Key:           []string{"job_id:" + jobID},
		CompartmentId: common.String(s.compartmentID),
		Consistency:   nosql.GetRowConsistencyAbsolute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	if len(resp.Row.Value) == 0 {
		return nil, job.ErrNotFound
	}
	return fromRow(resp.Row.Value)
}

// toRow and fromRow go through JSON so the row keys match the job's JSON tags.
func toRow(j *job.Job) (map[string]interface{}, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	var row map[string]interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return row, nil
}

func fromRow(row map[string]interface{}) (*job.Job, error) {
	row = maps.Clone(row)
	for _, name := range processorFields {
		switch v := row[name].(type) {
		case nil, string:
		case float64:
			row[name] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			row[name] = fmt.Sprint(v)
		}
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job row: %w", err)
	}

	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job row: %w", err)
	}
	return &j, nil
}
