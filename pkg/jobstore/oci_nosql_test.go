package jobstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNoSQL struct {
	rows      map[string]map[string]interface{}
	getErr    error
	updateErr error

	lastGet    nosql.GetRowRequest
	lastUpdate nosql.UpdateRowRequest
}

func newFakeNoSQL() *fakeNoSQL {
	return &fakeNoSQL{rows: make(map[string]map[string]interface{})}
}

func (f *fakeNoSQL) GetRow(_ context.Context, req nosql.GetRowRequest) (nosql.GetRowResponse, error) {
	f.lastGet = req
	if f.getErr != nil {
		return nosql.GetRowResponse{}, f.getErr
	}
	id := strings.TrimPrefix(req.Key[0], "job_id:")
	return nosql.GetRowResponse{Row: nosql.Row{Value: f.rows[id]}}, nil
}

func (f *fakeNoSQL) UpdateRow(_ context.Context, req nosql.UpdateRowRequest) (nosql.UpdateRowResponse, error) {
	f.lastUpdate = req
	if f.updateErr != nil {
		return nosql.UpdateRowResponse{}, f.updateErr
	}
	id, _ := req.UpdateRowDetails.Value["job_id"].(string)
	if _, ok := f.rows[id]; ok && req.UpdateRowDetails.Option == nosql.UpdateRowDetailsOptionAbsent {
		return nosql.UpdateRowResponse{}, nil
	}
	f.rows[id] = req.UpdateRowDetails.Value
	return nosql.UpdateRowResponse{
		UpdateRowResult: nosql.UpdateRowResult{Version: common.String("v1")},
	}, nil
}

func TestNoSQL_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeNoSQL()
	s := newNoSQL(fake, "jobs", "ocid1.compartment.oc1..test")

	j := sampleJob("job-1")
	require.NoError(t, s.Create(ctx, j))

	assert.Equal(t, "jobs", *fake.lastUpdate.TableNameOrId)
	assert.Equal(t, "ocid1.compartment.oc1..test", *fake.lastUpdate.UpdateRowDetails.CompartmentId)
	assert.Equal(t, nosql.UpdateRowDetailsOptionAbsent, fake.lastUpdate.UpdateRowDetails.Option)
	assert.Equal(t, "PENDING", fake.rows["job-1"]["status"])

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, j, got)
	assert.Equal(t, []string{"job_id:job-1"}, fake.lastGet.Key)
	assert.Equal(t, nosql.GetRowConsistencyAbsolute, fake.lastGet.Consistency)
}

func TestNoSQL_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newNoSQL(newFakeNoSQL(), "jobs", "compartment")

	require.NoError(t, s.Create(ctx, sampleJob("job-1")))
	assert.ErrorIs(t, s.Create(ctx, sampleJob("job-1")), job.ErrAlreadyExists)
}

func TestNoSQL_GetMissing(t *testing.T) {
	s := newNoSQL(newFakeNoSQL(), "jobs", "compartment")

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestNoSQL_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeNoSQL()
	fake.getErr = errors.New("service unavailable")
	fake.updateErr = errors.New("throttled")
	s := newNoSQL(fake, "jobs", "compartment")

	err := s.Create(ctx, sampleJob("job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	_, err = s.Get(ctx, "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service unavailable")
	assert.NotErrorIs(t, err, job.ErrNotFound)
}

func TestNoSQL_GetProcessorNumbers(t *testing.T) {
	fake := newFakeNoSQL()
	fake.rows["job-1"] = map[string]interface{}{
		"job_id":      "job-1",
		"status":      "COMPLETED",
		"urban_pct":   12.5,
		"severity":    3,
		"message":     false,
		"coordinates": map[string]interface{}{"lat": -10.0, "extra": []interface{}{"a"}},
	}
	s := newNoSQL(fake, "jobs", "compartment")

	got, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "12.5", got.UrbanPct)
	assert.Equal(t, "3", got.Severity)
	assert.Equal(t, "false", got.Message)
	assert.Equal(t, job.Coordinates{"lat": -10.0, "extra": []interface{}{"a"}}, got.Coordinates)
	assert.Equal(t, 12.5, fake.rows["job-1"]["urban_pct"])
}
