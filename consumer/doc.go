// Package consumer drains SES feedback notifications from a queue into a
// suppression store.
//
// A [Consumer] repeatedly polls a [Source] for a batch of messages and
// processes every message of the batch concurrently: the body is decoded,
// bounces caused by a suppressed recipient are written to the [Recorder],
// and the message is acknowledged only once the write reported
// [feedback.Created] or [feedback.AlreadyExists]. A failed write leaves the
// message on the queue so it is redelivered.
//
// After each batch the consumer polls again only if the batch was full and
// at least the minimum restart budget (see [WithMinRestartBudget]) remains
// before the invocation deadline. Batches never overlap.
//
// Per-message failures are counted in the returned [Summary] and never fail
// [Consumer.Run]. Run returns an error only when polling fails or the
// remaining time cannot be determined.
package consumer
