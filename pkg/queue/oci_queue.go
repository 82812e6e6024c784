package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/queue"
)

// ociQueueAPI is the subset of queue.QueueClient used by OCIQueueNotifier.
type ociQueueAPI interface {
	PutMessages(ctx context.Context, request queue.PutMessagesRequest) (queue.PutMessagesResponse, error)
}

// OCIQueueNotifier publishes events to an OCI Queue.
type OCIQueueNotifier struct {
	client  ociQueueAPI
	queueID string
}

// NewOCIQueueNotifier creates a client for the queue identified by queueID.
// endpoint is the queue's messages endpoint; PutMessages fails against the
// regional control plane host.
func NewOCIQueueNotifier(provider common.ConfigurationProvider, queueID, endpoint string) (*OCIQueueNotifier, error) {
	client, err := queue.NewQueueClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI Queue client: %w", err)
	}
	if endpoint != "" {
		client.Host = endpoint
	}
	return newOCIQueueNotifier(client, queueID), nil
}

func newOCIQueueNotifier(client ociQueueAPI, queueID string) *OCIQueueNotifier {
	return &OCIQueueNotifier{client: client, queueID: queueID}
}

// JobCreated publishes event as a single queue message.
func (n *OCIQueueNotifier) JobCreated(ctx context.Context, event JobCreated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req := queue.PutMessagesRequest{
		QueueId: common.String(n.queueID),
		PutMessagesDetails: queue.PutMessagesDetails{
			Messages: []queue.PutMessagesDetailsEntry{
				{
					Content: common.String(string(body)),
				},
			},
		},
	}

	if _, err := n.client.PutMessages(ctx, req); err != nil {
		return fmt.Errorf("failed to publish job %s to OCI Queue: %w", event.JobID, err)
	}
	return nil
}
