// Package queue defines the message handed from a queue backend to the
// consumer.
package queue

import (
	"context"
	"time"
)

// Item is a single received queue message. The backend that produced it
// owns its lifecycle: Ack deletes the message, Nack releases it so the queue
// redelivers it once its visibility window lapses. Exactly one of the two
// should be called; later calls are no-ops.
type Item struct {
	MessageID        string
	Body             string
	ReceiveCount     int
	ReceiveTimestamp time.Time
	Ack              func(ctx context.Context) error
	Nack             func()
}
