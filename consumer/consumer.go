package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/altcatalin/ses-monitor/feedback"
	"github.com/altcatalin/ses-monitor/queue"
	"github.com/slackmgr/types"
	"golang.org/x/sync/semaphore"
)

// Source delivers batches of queue messages. It is satisfied by *sqs.Client.
type Source interface {
	Receive(ctx context.Context) ([]*queue.Item, error)
}

// Recorder writes a suppression at most once per recipient. It is satisfied
// by *dynamodb.Client and *postgres.Client.
type Recorder interface {
	Record(ctx context.Context, s *feedback.Suppression) (feedback.Outcome, error)
}

// Summary counts what happened during one [Consumer.Run].
type Summary struct {
	Polls          int
	Received       int
	Created        int
	Duplicates     int
	Ignored        int
	Malformed      int
	RecordFailures int
	AckFailures    int
}

func (s *Summary) fields() map[string]any {
	return map[string]any{
		"polls":           s.Polls,
		"received":        s.Received,
		"created":         s.Created,
		"duplicates":      s.Duplicates,
		"ignored":         s.Ignored,
		"malformed":       s.Malformed,
		"record_failures": s.RecordFailures,
		"ack_failures":    s.AckFailures,
	}
}

func (s *Summary) add(o *Summary) {
	s.Received += o.Received
	s.Created += o.Created
	s.Duplicates += o.Duplicates
	s.Ignored += o.Ignored
	s.Malformed += o.Malformed
	s.RecordFailures += o.RecordFailures
	s.AckFailures += o.AckFailures
}

// Consumer drains a [Source] into a [Recorder]. It holds no state between
// calls to [Consumer.Run].
type Consumer struct {
	source   Source
	recorder Recorder
	opts     *Options
	logger   types.Logger
}

// New creates a Consumer. Functional options may be passed to override
// defaults (see With* functions).
func New(source Source, recorder Recorder, logger types.Logger, opts ...Option) (*Consumer, error) {
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}

	if recorder == nil {
		return nil, errors.New("recorder cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer options: %w", err)
	}

	return &Consumer{
		source:   source,
		recorder: recorder,
		opts:     options,
		logger:   logger.WithField("component", "consumer"),
	}, nil
}

// Run polls and processes batches until a poll returns a partial batch, or
// the remaining time drops below the restart budget, or ctx ends while
// polling. Each batch is fully settled before the next poll.
func (c *Consumer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	for {
		items, err := c.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.WithFields(summary.fields()).Infof("Context ended while polling, stopping: %v", ctx.Err())
				return summary, nil
			}

			return summary, fmt.Errorf("failed to poll queue: %w", err)
		}

		summary.Polls++

		if len(items) == 0 {
			c.logger.WithFields(summary.fields()).Info("Queue is empty, stopping")
			return summary, nil
		}

		batch := c.processBatch(ctx, items)
		summary.add(batch)

		c.logger.WithField("batch", summary.Polls).WithFields(batch.fields()).Info("Batch processed")

		if len(items) < c.opts.batchSize {
			c.logger.WithFields(summary.fields()).Info("Partial batch received, stopping")
			return summary, nil
		}

		remaining, err := c.opts.remainingTimeFn(ctx)
		if err != nil {
			return summary, fmt.Errorf("failed to read remaining invocation time: %w", err)
		}

		if remaining < c.opts.minRestartTime {
			c.logger.WithField("remaining", remaining).WithFields(summary.fields()).Info("Time budget exhausted, stopping")
			return summary, nil
		}
	}
}

// processBatch runs every item through its own pipeline and waits for all of
// them. Pipelines do not share failures.
func (c *Consumer) processBatch(ctx context.Context, items []*queue.Item) *Summary {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		batch = &Summary{Received: len(items)}
		sem   = semaphore.NewWeighted(int64(c.opts.concurrency()))
	)

	for _, item := range items {
		// Acquire is detached so a late cancellation cannot skip items.
		_ = sem.Acquire(context.WithoutCancel(ctx), 1)

		wg.Go(func() {
			defer sem.Release(1)

			r := c.process(ctx, item)

			mu.Lock()
			r.apply(batch)
			mu.Unlock()
		})
	}

	wg.Wait()

	return batch
}

type result struct {
	outcome   feedback.Outcome
	ignored   bool
	malformed bool
	recordErr bool
	ackFailed bool
}

func (r result) apply(s *Summary) {
	switch {
	case r.malformed:
		s.Malformed++
	case r.ignored:
		s.Ignored++
	case r.recordErr:
		s.RecordFailures++
	case r.outcome == feedback.Created:
		s.Created++
	case r.outcome == feedback.AlreadyExists:
		s.Duplicates++
	}

	if r.ackFailed {
		s.AckFailures++
	}
}

func (c *Consumer) process(ctx context.Context, item *queue.Item) result {
	logger := c.logger.WithField("message_id", item.MessageID).WithField("receive_count", item.ReceiveCount)

	event, err := feedback.Decode(item.Body)
	if err != nil {
		logger.Errorf("Skipping malformed notification: %v", err)
		item.Nack()

		return result{malformed: true}
	}

	if !feedback.ShouldSuppress(event) {
		logger.WithField("notification_type", event.NotificationType).Debug("Notification does not require suppression")

		if !c.opts.ackIgnored {
			item.Nack()
			return result{ignored: true}
		}

		return result{ignored: true, ackFailed: c.ack(ctx, logger, item)}
	}

	outcome, err := c.recorder.Record(ctx, feedback.NewSuppression(event))
	if err != nil {
		logger.Errorf("Failed to record suppression, leaving message for redelivery: %v", err)
		item.Nack()

		return result{recordErr: true}
	}

	logger.WithField("outcome", outcome.String()).Debug("Suppression recorded")

	return result{outcome: outcome, ackFailed: c.ack(ctx, logger, item)}
}

// ack deletes the message and reports whether that failed. A failed ack is
// not retried; the message comes back and records as a duplicate.
func (c *Consumer) ack(ctx context.Context, logger types.Logger, item *queue.Item) bool {
	started := time.Now()

	if err := item.Ack(ctx); err != nil {
		logger.Errorf("Failed to acknowledge message: %v", err)
		return true
	}

	logger.WithField("elapsed", time.Since(started)).Debug("Message acknowledged")

	return false
}
