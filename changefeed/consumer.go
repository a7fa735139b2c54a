package changefeed

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const defaultIdle = time.Second

type message struct {
	id         string
	popReceipt string
	text       string
}

// Consumer drains change messages from an Azure Storage queue.
type Consumer struct {
	receive func(ctx context.Context) ([]message, error)
	remove  func(ctx context.Context, m message) error
	idle    time.Duration
	logger  *log.Logger
}

// NewQueueConsumer creates a consumer for the named queue.
func NewQueueConsumer(connStr, queueName string, logger *log.Logger) (*Consumer, error) {
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Consumer{
		receive: func(ctx context.Context) ([]message, error) {
			resp, err := qc.DequeueMessage(ctx, nil)
			if err != nil {
				return nil, err
			}
			out := make([]message, 0, len(resp.Messages))
			for _, m := range resp.Messages {
				if m == nil || m.MessageID == nil || m.PopReceipt == nil {
					continue
				}
				msg := message{id: *m.MessageID, popReceipt: *m.PopReceipt}
				if m.MessageText != nil {
					msg.text = *m.MessageText
				}
				out = append(out, msg)
			}
			return out, nil
		},
		remove: func(ctx context.Context, m message) error {
			_, err := qc.DeleteMessage(ctx, m.id, m.popReceipt, nil)
			return err
		},
		idle:   defaultIdle,
		logger: logger,
	}, nil
}

// Run hands every decoded change to handle until ctx is cancelled. A message
// is deleted once handle succeeds; undecodable messages are deleted and
// logged. A failing handler leaves the message for redelivery.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, Change) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := c.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.WithError(err).Warn("changefeed receive failed")
			c.sleep(ctx)
			continue
		}
		if len(msgs) == 0 {
			c.sleep(ctx)
			continue
		}
		for _, m := range msgs {
			c.process(ctx, m, handle)
		}
	}
}

func (c *Consumer) process(ctx context.Context, m message, handle func(context.Context, Change) error) {
	var ch Change
	if err := sonic.UnmarshalString(m.text, &ch); err != nil || ch.Type == "" {
		c.logger.WithField("message_id", m.id).Warn("dropping undecodable change message")
	} else if err := handle(ctx, ch); err != nil {
		c.logger.WithError(err).WithField("id", ch.ID).Warn("change handler failed")
		return
	}
	if err := c.remove(ctx, m); err != nil {
		c.logger.WithError(err).WithField("message_id", m.id).Warn("delete change message failed")
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
