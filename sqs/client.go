package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/altcatalin/ses-monitor/queue"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/types"
)

// sqsClient is the subset of the SQS API used by [Client]. It is satisfied by
// *sqs.Client.
type sqsClient interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Client polls an SQS queue for feedback notifications.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queue       string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	extender    *messageExtender
	extenderCh  chan *extendableMessage
	logger      types.Logger
	initialized bool
}

// New creates a Client for the given queue, which may be a queue URL or a
// queue name.
//
// Functional options may be passed to override defaults (see With* functions).
// The logger is automatically enriched with "plugin" and "queue" fields.
//
// New does not connect to AWS. Call [Client.Init] to resolve the queue URL
// and start the background visibility-extension goroutine.
func New(awsCfg *aws.Config, queue string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqs").
		WithField("queue", queue)

	return &Client{
		awsCfg:     awsCfg,
		queue:      queue,
		opts:       options,
		extenderCh: make(chan *extendableMessage, 100),
		logger:     logger,
	}
}

// Init validates options, resolves the queue URL if a queue name was given,
// and starts the background visibility-extension goroutine. It returns the
// receiver so that initialization can be chained with [New]:
//
//	client, err := sqs.New(&awsCfg, "ses-feedback", logger).Init(ctx)
//
// The provided context governs the background goroutine; cancelling it
// shuts the goroutine down cleanly.
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.queue == "" {
		return nil, errors.New("the SQS queue URL or name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.sqsAPIMaxRetryAttempts)
		})
	}

	if strings.HasPrefix(c.queue, "https://") {
		c.queueURL = c.queue
	} else {
		resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queue)})
		if err != nil {
			return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queue, err)
		}

		c.queueURL = aws.ToString(resp.QueueUrl)
	}

	c.extender = newMessageExtender(c.opts, c.logger)

	// Start the message extender. This will run until the context is cancelled or the extender channel is closed.
	go c.extender.run(ctx, c.extenderCh)

	c.initialized = true

	return c, nil
}

// Name returns the queue URL or name supplied to [New].
func (c *Client) Name() string {
	return c.queue
}

// BatchSize returns the maximum number of messages a single [Client.Receive]
// call can return.
func (c *Client) BatchSize() int {
	return int(c.opts.sqsReceiveMaxNumberOfMessages)
}

// Receive issues a single long-poll ReceiveMessage call and returns the
// received messages, at most [Client.BatchSize] of them. It blocks for up to
// the configured wait time when the queue is empty and then returns an empty
// slice.
//
// Each returned item exposes two callbacks:
//   - Ack deletes the message from SQS and returns the delete error, if any.
//   - Nack abandons the message without deleting it; SQS redelivers it after
//     the visibility timeout expires.
//
// [Client.Init] must have been called successfully before Receive is invoked.
func (c *Client) Receive(ctx context.Context) ([]*queue.Item, error) {
	if !c.initialized {
		return nil, errors.New("SQS client not initialized")
	}

	c.logger.WithField("wait_time", c.opts.sqsReceiveWaitTimeSeconds).Debug("Reading SQS queue")

	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    &c.queueURL,
		MaxNumberOfMessages:         c.opts.sqsReceiveMaxNumberOfMessages,
		VisibilityTimeout:           c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:             c.opts.sqsReceiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	now := time.Now()
	items := make([]*queue.Item, 0, len(output.Messages))

	for _, m := range output.Messages {
		msgID := aws.ToString(m.MessageId)
		receiptHandle := aws.ToString(m.ReceiptHandle)

		ack := func(ctx context.Context) error {
			return c.deleteMessage(ctx, msgID, receiptHandle)
		}

		extendVisibility := func(ctx context.Context) error {
			return c.changeMessageVisibility(ctx, msgID, receiptHandle)
		}

		extendableMsg := newExtendableMessage(msgID, c.opts.sqsVisibilityTimeoutSeconds)

		extendableMsg.SetReceiptHandle(receiptHandle)
		extendableMsg.SetAckFunc(ack)
		extendableMsg.SetExtendVisibilityFunc(extendVisibility)

		if err := trySend(ctx, extendableMsg, c.extenderCh); err != nil {
			return nil, err
		}

		items = append(items, &queue.Item{
			MessageID:        msgID,
			Body:             aws.ToString(m.Body),
			ReceiveCount:     receiveCount(m),
			ReceiveTimestamp: now,
			Ack:              extendableMsg.Ack,
			Nack:             extendableMsg.Nack,
		})

		c.logger.WithField("message_id", msgID).Debug("SQS message received")
	}

	return items, nil
}

// deleteMessage deletes the SQS message with the given receipt handle.
// The call is detached from the caller's cancellation and bounded by the
// configured delete timeout.
func (c *Client) deleteMessage(ctx context.Context, messageID, receiptHandle string) error {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.deleteTimeout)
	defer cancel()

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to delete SQS message %s: %w", messageID, err)
	}

	c.logger.WithField("message_id", messageID).Debug("SQS message deleted")

	return nil
}

// changeMessageVisibility extends the visibility timeout of the SQS message with the given receipt handle.
// Returns an error if the visibility extension fails.
func (c *Client) changeMessageVisibility(ctx context.Context, messageID, receiptHandle string) error {
	logger := c.logger.WithField("message_id", messageID).WithField("visibility_timeout_seconds", c.opts.sqsVisibilityTimeoutSeconds)

	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: c.opts.sqsVisibilityTimeoutSeconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to extend SQS message visibility: %w", err)
	}

	logger.Debug("SQS message visibility extended")

	return nil
}

func receiveCount(m sqstypes.Message) int {
	v, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 0
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}

	return n
}

func trySend[T any](ctx context.Context, msg T, sinkCh chan<- T) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
