// Package notify delivers operator-facing text notifications. Delivery is
// fire-and-forget from the caller's perspective: sends are queued onto an
// asynchronous dispatcher with a bounded per-send timeout and a single
// retry, and exhausted sends are dead-lettered into the audit log. A slow
// or failing channel never blocks or fails the triggering request.
package notify

import "context"

// Sink is a single outbound text-message channel.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Notifier is the interface the core components depend on.
type Notifier interface {
	// Notify queues text for delivery. It never blocks and never fails
	// the caller; a full queue drops the message with a log entry.
	Notify(text string)
}

// Discard is a Notifier that drops everything. Useful in tests and when no
// channel is configured.
type Discard struct{}

func (Discard) Notify(string) {}

// MultiSink fans a send out to every configured sink. The first error is
// returned so the dispatcher retries the whole fan-out; sinks are expected
// to tolerate duplicate delivery.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, text string) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
