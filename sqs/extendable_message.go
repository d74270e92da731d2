package sqs

import (
	"context"
	"sync"
	"time"
)

type extendableMessage struct {
	messageID                string
	receiptHandle            string
	originalReceiveTimestamp time.Time
	lastExtendedAt           time.Time
	visibilityTimeout        time.Duration
	ackFunc                  func(ctx context.Context) error
	extendVisibilityFunc     func(ctx context.Context) error
	processingLock           *sync.Mutex
}

func newExtendableMessage(messageID string, visibilityTimeoutSeconds int32) *extendableMessage {
	visibilityTimeout := time.Duration(visibilityTimeoutSeconds) * time.Second
	now := time.Now()

	return &extendableMessage{
		messageID:                messageID,
		originalReceiveTimestamp: now,
		lastExtendedAt:           now,
		visibilityTimeout:        visibilityTimeout,
		processingLock:           &sync.Mutex{},
	}
}

func (m *extendableMessage) MessageID() string {
	return m.messageID
}

// SetReceiptHandle records the receipt handle of this delivery. Two
// deliveries of the same message carry different handles.
func (m *extendableMessage) SetReceiptHandle(h string) {
	m.receiptHandle = h
}

// trackingKey identifies this delivery, falling back to the message ID when
// no receipt handle is known.
func (m *extendableMessage) trackingKey() string {
	if m.receiptHandle != "" {
		return m.receiptHandle
	}

	return m.messageID
}

func (m *extendableMessage) OriginalReceiveTimestamp() time.Time {
	return m.originalReceiveTimestamp
}

// SetAckFunc sets the function that deletes the message from the queue.
func (m *extendableMessage) SetAckFunc(f func(ctx context.Context) error) {
	m.ackFunc = f
}

// SetExtendVisibilityFunc sets the function to extend the message visibility timeout.
func (m *extendableMessage) SetExtendVisibilityFunc(f func(ctx context.Context) error) {
	m.extendVisibilityFunc = f
}

// Ack deletes the message from the queue. The callbacks are cleared whether
// or not the delete succeeds; a failed delete is not retried and the message
// will be redelivered once its visibility timeout expires.
func (m *extendableMessage) Ack(ctx context.Context) error {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	if m.ackFunc == nil {
		return nil
	}

	err := m.ackFunc(ctx)

	// Clear the ack and extend functions to prevent them from being called again.
	m.ackFunc = nil
	m.extendVisibilityFunc = nil

	return err
}

// Nack stops tracking the message without deleting it. SQS has no explicit
// negative acknowledgment; the message becomes visible again when its
// current visibility timeout expires.
func (m *extendableMessage) Nack() {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	m.ackFunc = nil
	m.extendVisibilityFunc = nil
}

// IsAckedOrNacked returns true if the message has been acknowledged or negatively acknowledged.
func (m *extendableMessage) IsAckedOrNacked() bool {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	return m.ackFunc == nil
}

// NeedsExtensionNow returns true if the message needs its visibility timeout to be extended now.
func (m *extendableMessage) NeedsExtensionNow() bool {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	return m.extendVisibilityFunc != nil && time.Since(m.lastExtendedAt) > m.visibilityTimeout/2
}

// ExtendVisibility extends the message visibility timeout.
// Returns an error if the extension fails. On success, updates lastExtendedAt.
func (m *extendableMessage) ExtendVisibility(ctx context.Context) error {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	// The message may have been acked or nacked while waiting for the lock.
	if m.extendVisibilityFunc == nil {
		return nil
	}

	if err := m.extendVisibilityFunc(ctx); err != nil {
		return err
	}

	m.lastExtendedAt = time.Now()

	return nil
}
