package feedback

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NotificationType is the SES notification type carried in the inner
// notification payload.
type NotificationType string

const (
	NotificationTypeBounce    NotificationType = "Bounce"
	NotificationTypeComplaint NotificationType = "Complaint"
	NotificationTypeDelivery  NotificationType = "Delivery"
)

// BounceSubTypeSuppressed marks a bounce caused by the recipient being on the
// SES suppression list.
const BounceSubTypeSuppressed = "Suppressed"

// ErrMalformedEnvelope is wrapped by every error returned from [Decode].
var ErrMalformedEnvelope = errors.New("malformed notification envelope")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Envelope is the outer SNS notification wrapper.
type Envelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	TopicArn  string `json:"TopicArn"`
	Timestamp string `json:"Timestamp"`
	Message   string `json:"Message" validate:"required"`
}

// Notification is the SES notification found in [Envelope.Message]. Only the
// fields needed for suppression are mapped.
type Notification struct {
	NotificationType NotificationType `json:"notificationType" validate:"required"`
	Bounce           *Bounce          `json:"bounce"`
	Mail             Mail             `json:"mail"`
}

type Bounce struct {
	BounceType    string `json:"bounceType"`
	BounceSubType string `json:"bounceSubType"`
}

type Mail struct {
	MessageID     string        `json:"messageId"`
	Timestamp     string        `json:"timestamp"`
	Source        string        `json:"source"`
	CommonHeaders CommonHeaders `json:"commonHeaders"`
}

type CommonHeaders struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}

// bounceFields holds the values that must be present on a Bounce before it
// can be turned into an [Event].
type bounceFields struct {
	BounceSubType string   `validate:"required"`
	To            []string `validate:"required,min=1,dive,required"`
	MessageID     string   `validate:"required"`
	Timestamp     string   `validate:"required"`
}

// Event is the decoded, flattened form of a feedback notification.
type Event struct {
	NotificationType NotificationType
	BounceType       string
	BounceSubType    string
	Recipient        string
	MessageID        string
	Timestamp        string
}

// Decode parses a raw queue message body into an [Event]. The body must be
// an SNS envelope whose Message field is itself a JSON document.
func Decode(body string) (*Event, error) {
	var envelope Envelope

	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to parse envelope: %w", ErrMalformedEnvelope, err)
	}

	if err := validate.Struct(&envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid envelope: %w", ErrMalformedEnvelope, err)
	}

	var notification Notification

	if err := json.Unmarshal([]byte(envelope.Message), &notification); err != nil {
		return nil, fmt.Errorf("%w: failed to parse notification: %w", ErrMalformedEnvelope, err)
	}

	if err := validate.Struct(&notification); err != nil {
		return nil, fmt.Errorf("%w: invalid notification: %w", ErrMalformedEnvelope, err)
	}

	event := &Event{
		NotificationType: notification.NotificationType,
		MessageID:        notification.Mail.MessageID,
		Timestamp:        notification.Mail.Timestamp,
	}

	if len(notification.Mail.CommonHeaders.To) > 0 {
		event.Recipient = notification.Mail.CommonHeaders.To[0]
	}

	if notification.NotificationType != NotificationTypeBounce {
		return event, nil
	}

	if notification.Bounce == nil {
		return nil, fmt.Errorf("%w: bounce notification without bounce details", ErrMalformedEnvelope)
	}

	fields := &bounceFields{
		BounceSubType: notification.Bounce.BounceSubType,
		To:            notification.Mail.CommonHeaders.To,
		MessageID:     notification.Mail.MessageID,
		Timestamp:     notification.Mail.Timestamp,
	}

	if err := validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: invalid bounce notification: %w", ErrMalformedEnvelope, err)
	}

	event.BounceType = notification.Bounce.BounceType
	event.BounceSubType = notification.Bounce.BounceSubType

	return event, nil
}

// ShouldSuppress reports whether the event is a bounce caused by the
// recipient being suppressed.
func ShouldSuppress(event *Event) bool {
	if event == nil {
		return false
	}

	return event.NotificationType == NotificationTypeBounce && event.BounceSubType == BounceSubTypeSuppressed
}
