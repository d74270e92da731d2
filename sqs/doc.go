// Package sqs provides the AWS SQS queue backend for the suppression
// consumer. It polls bounded batches of feedback notifications and hands
// each one to the caller as a [github.com/altcatalin/ses-monitor/queue.Item]
// with Ack and Nack callbacks.
//
// # Client
//
// Create a client with [New] and initialise it with [Client.Init]:
//
//	client, err := sqs.New(&awsCfg, queueURL, logger,
//	    sqs.WithSqsReceiveWaitTimeSeconds(5),
//	).Init(ctx)
//
// Then poll:
//
//	items, err := client.Receive(ctx)
//	for _, item := range items {
//	    if process(item) {
//	        _ = item.Ack(ctx)
//	    } else {
//	        item.Nack()
//	    }
//	}
//
// The queue may be given either as a queue URL (anything starting with
// "https://") or as a queue name, which [Client.Init] resolves through
// GetQueueUrl.
//
// Receive performs exactly one ReceiveMessage call. An empty slice means the
// long-poll wait elapsed without messages and is not an error.
//
// # Acknowledgement
//
// Ack deletes the message with its receipt handle. The delete runs with a
// short timeout detached from the caller's cancellation, so a batch that is
// settling while the invocation winds down still gets its deletes issued.
// Nack does not call SQS at all; the message becomes visible again when its
// current visibility timeout expires.
//
// # Visibility Extension
//
// While an item is neither acked nor nacked, a background goroutine extends
// its visibility timeout each time half of it has elapsed, so a slow batch
// is not redelivered to a concurrent poller mid-flight. Extension is
// best-effort: on failure the message is dropped from tracking and may be
// redelivered, which the idempotent suppression write tolerates.
//
// A message is never extended beyond the duration set by
// [WithMaxMessageExtension] (default: 10 minutes).
package sqs
