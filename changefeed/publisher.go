package changefeed

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
)

// Publisher delivers changes to a downstream transport.
type Publisher interface {
	Publish(ctx context.Context, changes []Change) error
}

// QueuePublisher writes each change as one Azure Storage queue message.
type QueuePublisher struct {
	queue *azqueue.QueueClient
	send  func(ctx context.Context, content string) error
}

// NewQueuePublisher creates a publisher for the named queue.
func NewQueuePublisher(connStr, queueName string) (*QueuePublisher, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueuePublisher{
		queue: qc,
		send: func(ctx context.Context, content string) error {
			_, err := qc.EnqueueMessage(ctx, content, nil)
			return err
		},
	}, nil
}

// Publish enqueues the changes in order and stops at the first failure.
func (p *QueuePublisher) Publish(ctx context.Context, changes []Change) error {
	for _, ch := range changes {
		data, err := sonic.Marshal(ch)
		if err != nil {
			return err
		}
		if err := p.send(ctx, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureQueue creates the queue, tolerating one that already exists.
func (p *QueuePublisher) EnsureQueue(ctx context.Context) error {
	if p.queue == nil {
		return nil
	}
	_, err := p.queue.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists" {
			return nil
		}
		return err
	}
	return nil
}
