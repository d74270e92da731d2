package sqs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/slackmgr/types"
	"golang.org/x/sync/errgroup"
)

// messageExtender tracks received messages that have been neither acked nor
// nacked and extends their visibility timeout so that a concurrent poller
// does not receive them while the current batch is still settling.
//
// Extension is best-effort: if an extension fails the message is removed
// from tracking and may be redelivered.
type messageExtender struct {
	inFlightMessages map[string]*extendableMessage
	inFlightMsgCount atomic.Int64
	opts             *Options
	logger           types.Logger
}

func newMessageExtender(opts *Options, logger types.Logger) *messageExtender {
	return &messageExtender{
		inFlightMessages: make(map[string]*extendableMessage),
		opts:             opts,
		logger:           logger,
	}
}

// InFlight returns the number of messages currently tracked.
func (m *messageExtender) InFlight() int64 {
	return m.inFlightMsgCount.Load()
}

func (m *messageExtender) run(ctx context.Context, sourceCh <-chan *extendableMessage) {
	m.logger.Debug("SQS message extender started")
	defer m.logger.Debug("SQS message extender exited")

	checkInterval := max(time.Duration(m.opts.sqsVisibilityTimeoutSeconds/3)*time.Second, 5*time.Second)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.processInFlightMessages(ctx)
		case msg, ok := <-sourceCh:
			if !ok {
				return
			}

			m.addMessage(msg)
		}
	}
}

func (m *messageExtender) processInFlightMessages(ctx context.Context) {
	if len(m.inFlightMessages) == 0 {
		return
	}

	inNeedOfExtension := []*extendableMessage{}

	for _, msg := range m.inFlightMessages {
		if msg.IsAckedOrNacked() {
			m.removeMessage(msg)
			continue
		}

		if (time.Since(msg.OriginalReceiveTimestamp()) + time.Duration(m.opts.sqsVisibilityTimeoutSeconds)*time.Second) >= m.opts.maxMessageExtension {
			m.logger.WithField("message_id", msg.MessageID()).Error("SQS message has reached maximum visibility timeout extension limit, removing from list of in-flight messages")
			m.removeMessage(msg)
			continue
		}

		if msg.NeedsExtensionNow() {
			inNeedOfExtension = append(inNeedOfExtension, msg)
		}
	}

	if len(inNeedOfExtension) == 0 {
		return
	}

	m.extend(ctx, inNeedOfExtension)
}

// maxConcurrentExtensions bounds ChangeMessageVisibility calls per tick.
const maxConcurrentExtensions = 3

// extend renews the visibility of every due message. Messages whose renewal
// fails stop being tracked; nothing is removed if ctx ended mid-way.
func (m *messageExtender) extend(ctx context.Context, due []*extendableMessage) {
	started := time.Now()
	failed := make([]bool, len(due))

	var g errgroup.Group
	g.SetLimit(maxConcurrentExtensions)

	for i, msg := range due {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			if err := msg.ExtendVisibility(ctx); err != nil && ctx.Err() == nil {
				m.logger.WithField("message_id", msg.MessageID()).Errorf("Failed to extend message visibility, removing from in-flight tracking: %v", err)
				failed[i] = true
			}

			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	for i, msg := range due {
		if failed[i] {
			m.removeMessage(msg)
		}
	}

	m.logger.WithField("count", len(due)).WithField("elapsed", time.Since(started)).Debug("Extended SQS message visibility")
}

func (m *messageExtender) addMessage(msg *extendableMessage) {
	m.inFlightMessages[msg.trackingKey()] = msg
	m.inFlightMsgCount.Store(int64(len(m.inFlightMessages)))
}

// removeMessage stops tracking msg. Another delivery stored under the same
// key is left alone.
func (m *messageExtender) removeMessage(msg *extendableMessage) {
	if stored, ok := m.inFlightMessages[msg.trackingKey()]; !ok || stored != msg {
		return
	}

	delete(m.inFlightMessages, msg.trackingKey())
	m.inFlightMsgCount.Store(int64(len(m.inFlightMessages)))
}
