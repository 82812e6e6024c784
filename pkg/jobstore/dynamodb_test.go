package jobstore

import (
	"context"
	"errors"
	"testing"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	getErr error
	putErr error

	lastGet *dynamodb.GetItemInput
	lastPut *dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = in
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := in.Key["job_id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := in.Item["job_id"].(*types.AttributeValueMemberS).Value
	if _, ok := f.items[key]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDB_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := newDynamoDB(fake, "jobs")

	j := sampleJob("job-1")
	require.NoError(t, s.Create(ctx, j))

	assert.Equal(t, "jobs", aws.ToString(fake.lastPut.TableName))
	assert.Equal(t, "attribute_not_exists(job_id)", aws.ToString(fake.lastPut.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PENDING"}, fake.items["job-1"]["status"])

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, j, got)
	assert.True(t, aws.ToBool(fake.lastGet.ConsistentRead))
}

func TestDynamoDB_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newDynamoDB(newFakeDynamo(), "jobs")

	require.NoError(t, s.Create(ctx, sampleJob("job-1")))
	assert.ErrorIs(t, s.Create(ctx, sampleJob("job-1")), job.ErrAlreadyExists)
}

func TestDynamoDB_GetMissing(t *testing.T) {
	s := newDynamoDB(newFakeDynamo(), "jobs")

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestDynamoDB_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.getErr = errors.New("ResourceNotFoundException: table missing")
	fake.putErr = errors.New("ProvisionedThroughputExceededException")
	s := newDynamoDB(fake, "jobs")

	err := s.Create(ctx, sampleJob("job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProvisionedThroughputExceededException")

	_, err = s.Get(ctx, "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")
}

func TestDynamoDB_GetProcessorNumbers(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["job-1"] = map[string]types.AttributeValue{
		"job_id":    &types.AttributeValueMemberS{Value: "job-1"},
		"status":    &types.AttributeValueMemberS{Value: "COMPLETED"},
		"urban_pct": &types.AttributeValueMemberN{Value: "12.5"},
		"severity":  &types.AttributeValueMemberN{Value: "3"},
		"message":   &types.AttributeValueMemberBOOL{Value: true},
		"coordinates": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"latitude": &types.AttributeValueMemberS{Value: "-10"},
			"crs":      &types.AttributeValueMemberS{Value: "EPSG:4326"},
		}},
	}
	s := newDynamoDB(fake, "jobs")

	got, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, "12.5", got.UrbanPct)
	assert.Equal(t, "3", got.Severity)
	assert.Equal(t, "true", got.Message)
	assert.Equal(t, job.Coordinates{"latitude": "-10", "crs": "EPSG:4326"}, got.Coordinates)
}
