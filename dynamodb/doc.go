// Package dynamodb provides a DynamoDB-backed suppression store.
//
// # Overview
//
// Every suppressed recipient is stored as one item keyed by the recipient
// address (partition key "r"):
//
//	r  S  recipient address, verbatim
//	m  S  SES message ID of the bounced mail
//	t  S  send timestamp of the bounced mail
//	s  N  status, always 1
//
// Writes are conditional on attribute_not_exists(r), so the first record for
// a recipient is kept forever and redelivered or repeated bounces are
// reported as [feedback.AlreadyExists] rather than errors.
//
// A Global Secondary Index ([GSITimestamp], partition key s, sort key t)
// lets [Client.ListSuppressions] return every suppression newest first.
//
// # Getting Started
//
//	client := dynamodb.New(&awsCfg, tableName, logger)
//
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//
//	if err := client.Init(ctx, false); err != nil {
//	    return err
//	}
//
//	outcome, err := client.Record(ctx, feedback.NewSuppression(event))
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines once Connect
// has returned.
package dynamodb
