package feedback

import "fmt"

// StatusSuppressed is the fixed status value stored with every suppression.
const StatusSuppressed = 1

// Suppression is the durable record written once per recipient.
type Suppression struct {
	Recipient string `json:"recipient"`
	MessageID string `json:"messageId"`
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
}

// NewSuppression builds the suppression record for a suppress-worthy event.
func NewSuppression(event *Event) *Suppression {
	return &Suppression{
		Recipient: event.Recipient,
		MessageID: event.MessageID,
		Timestamp: event.Timestamp,
		Status:    StatusSuppressed,
	}
}

// Outcome is the success-class result of a conditional suppression write.
// Failures are reported as errors alongside the zero Outcome.
type Outcome int

const (
	// Created means the record did not exist and was written.
	Created Outcome = iota + 1

	// AlreadyExists means a record for the recipient was already present.
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
