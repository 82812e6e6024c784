package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3PresignAPI is the subset of s3.PresignClient used by S3Presigner.
type s3PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Presigner signs PutObject URLs. The Content-Type is part of the
// signature, so uploads with any other type are rejected by S3.
type S3Presigner struct {
	client s3PresignAPI
	bucket string
}

// NewS3Presigner creates a presigner from an AWS config.
func NewS3Presigner(cfg aws.Config, bucket string) *S3Presigner {
	return newS3Presigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket)
}

func newS3Presigner(client s3PresignAPI, bucket string) *S3Presigner {
	return &S3Presigner{client: client, bucket: bucket}
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := p.client.PresignPutObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}
