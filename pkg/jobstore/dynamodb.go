package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"analysis-jobs-oci-serverless/pkg/job"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the subset of dynamodb.Client used by DynamoDB.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDB stores jobs in a table whose partition key is the string job_id.
type DynamoDB struct {
	client dynamoAPI
	table  string
}

// NewDynamoDB creates a store from an AWS config.
func NewDynamoDB(cfg aws.Config, table string) *DynamoDB {
	return newDynamoDB(dynamodb.NewFromConfig(cfg), table)
}

func newDynamoDB(client dynamoAPI, table string) *DynamoDB {
	return &DynamoDB{client: client, table: table}
}

func (s *DynamoDB) Create(ctx context.Context, j *job.Job) error {
	item, err := attributevalue.MarshalMap(j)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(job_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return job.ErrAlreadyExists
		}
		return fmt.Errorf("failed to put job %s: %w", j.JobID, err)
	}
	return nil
}

func (s *DynamoDB) Get(ctx context.Context, jobID string) (*job.Job, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: jobID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	if len(out.Item) == 0 {
		return nil, job.ErrNotFound
	}

	stringifyProcessorAttrs(out.Item)

	var j job.Job
	if err := attributevalue.UnmarshalMap(out.Item, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &j, nil
}

func stringifyProcessorAttrs(item map[string]types.AttributeValue) {
	for _, name := range processorFields {
		switch v := item[name].(type) {
		case *types.AttributeValueMemberN:
			item[name] = &types.AttributeValueMemberS{Value: v.Value}
		case *types.AttributeValueMemberBOOL:
			item[name] = &types.AttributeValueMemberS{Value: strconv.FormatBool(v.Value)}
		case *types.AttributeValueMemberNULL:
			delete(item, name)
		}
	}
}
