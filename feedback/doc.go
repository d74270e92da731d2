// Package feedback decodes Amazon SES feedback notifications delivered
// through an SNS topic subscription and decides which of them should result
// in a recipient being suppressed.
//
// # Wire format
//
// Each queue message body is an SNS notification envelope whose Message
// field holds the SES notification as a JSON-encoded string:
//
//	{
//	    "Type": "Notification",
//	    "MessageId": "...",
//	    "Message": "{\"notificationType\":\"Bounce\",\"bounce\":{...},\"mail\":{...}}"
//	}
//
// [Decode] unwraps both layers and returns a flattened [Event]. Any failure
// to parse either layer, or a missing required field, is reported as an
// error wrapping [ErrMalformedEnvelope].
//
// # Classification
//
// [ShouldSuppress] is a pure predicate: only a Bounce whose sub-type is
// Suppressed (the recipient is on the SES account-level suppression list)
// yields a [Suppression] record. Complaints, deliveries and every other
// bounce sub-type are filtered out.
package feedback
