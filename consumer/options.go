package consumer

import (
	"context"
	"errors"
	"time"
)

// Option is a functional option for configuring a [Consumer].
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer].
type Options struct {
	batchSize       int
	minRestartTime  time.Duration
	maxConcurrency  int
	ackIgnored      bool
	remainingTimeFn func(ctx context.Context) (time.Duration, error)
}

func newOptions() *Options {
	return &Options{
		batchSize:       10,
		minRestartTime:  5 * time.Second,
		remainingTimeFn: deadlineRemaining,
	}
}

func (o *Options) validate() error {
	if o.batchSize < 1 {
		return errors.New("batch size must be at least 1")
	}

	if o.minRestartTime < 0 {
		return errors.New("minimum restart time budget cannot be negative")
	}

	if o.maxConcurrency < 0 {
		return errors.New("max concurrency cannot be negative")
	}

	if o.remainingTimeFn == nil {
		return errors.New("remaining time function cannot be nil")
	}

	return nil
}

// concurrency returns the effective per-batch fan-out limit.
func (o *Options) concurrency() int {
	if o.maxConcurrency == 0 {
		return o.batchSize
	}

	return o.maxConcurrency
}

// WithBatchSize sets the number of messages a full poll returns. A poll that
// returns exactly this many messages is taken as a sign that more are waiting.
//
// The default is 10.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.batchSize = n
	}
}

// WithMinRestartBudget sets the minimum remaining time required to poll again
// after a full batch.
//
// The default is 5 seconds.
func WithMinRestartBudget(d time.Duration) Option {
	return func(o *Options) {
		o.minRestartTime = d
	}
}

// WithMaxConcurrency limits how many messages of one batch are processed at
// the same time. Zero means one worker per message in the batch.
func WithMaxConcurrency(n int) Option {
	return func(o *Options) {
		o.maxConcurrency = n
	}
}

// WithAckIgnored makes the consumer delete notifications that do not lead to
// a suppression. By default they are left on the queue.
func WithAckIgnored(ack bool) Option {
	return func(o *Options) {
		o.ackIgnored = ack
	}
}

// WithRemainingTime overrides how the remaining invocation time is measured.
// The default reads the deadline of the context passed to [Consumer.Run].
func WithRemainingTime(f func(ctx context.Context) (time.Duration, error)) Option {
	return func(o *Options) {
		o.remainingTimeFn = f
	}
}

var errNoDeadline = errors.New("context has no deadline")

func deadlineRemaining(ctx context.Context) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, errNoDeadline
	}

	return time.Until(deadline), nil
}
