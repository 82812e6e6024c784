package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
)

// parAPI is the subset of objectstorage.ObjectStorageClient used by OCIPresigner.
type parAPI interface {
	CreatePreauthenticatedRequest(ctx context.Context, request objectstorage.CreatePreauthenticatedRequestRequest) (objectstorage.CreatePreauthenticatedRequestResponse, error)
}

// OCIPresigner issues Object Storage pre-authenticated requests (PARs) with
// ObjectWrite access on a single object.
//
// A PAR cannot pin the Content-Type of the upload; callers are told the
// expected type alongside the URL.
type OCIPresigner struct {
	client    parAPI
	namespace string
	bucket    string
	region    string
	now       func() time.Time
}

// NewOCIPresigner creates a presigner from an OCI configuration provider.
func NewOCIPresigner(provider common.ConfigurationProvider, namespace, bucket, region string) (*OCIPresigner, error) {
	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create Object Storage client: %w", err)
	}
	return newOCIPresigner(client, namespace, bucket, region), nil
}

func newOCIPresigner(client parAPI, namespace, bucket, region string) *OCIPresigner {
	return &OCIPresigner{
		client:    client,
		namespace: namespace,
		bucket:    bucket,
		region:    region,
		now:       time.Now,
	}
}

func (p *OCIPresigner) PresignPut(ctx context.Context, key, _ string, ttl time.Duration) (string, error) {
	expires := p.now().Add(ttl)

	req := objectstorage.CreatePreauthenticatedRequestRequest{
		NamespaceName: common.String(p.namespace),
		BucketName:    common.String(p.bucket),
		CreatePreauthenticatedRequestDetails: objectstorage.CreatePreauthenticatedRequestDetails{
			Name:        common.String(parName(key)),
			ObjectName:  common.String(key),
			AccessType:  objectstorage.CreatePreauthenticatedRequestDetailsAccessTypeObjectwrite,
			TimeExpires: &common.SDKTime{Time: expires},
		},
	}

	resp, err := p.client.CreatePreauthenticatedRequest(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create PAR for %s: %w", key, err)
	}
	if resp.AccessUri == nil {
		return "", fmt.Errorf("failed to create PAR for %s: empty access URI", key)
	}

	return "https://objectstorage." + p.region + ".oraclecloud.com" + *resp.AccessUri, nil
}

// parName derives a readable PAR name from the object key.
func parName(key string) string {
	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return "upload-" + name
}
