package messaging

import (
	"context"
	"io"
)

// Publisher sends messages to a broker over a single owned channel.
//
// Every send first declares the binding it targets, so the exchange, queue and binding
// exist before the message is routed.
type Publisher interface {
	io.Closer
	Notifier

	// DeclareTopology declares a direct exchange, a non-durable queue and binds them.
	DeclareTopology(ctx context.Context, b Binding) error
	// Send publishes a single binary message without waiting for a confirmation.
	Send(ctx context.Context, b Binding, body []byte) error
	// SendText publishes a single text message without waiting for a confirmation.
	SendText(ctx context.Context, b Binding, message string) error
	// SendBatch publishes every message then blocks until the broker has confirmed all of them.
	// A negative acknowledgement for any message fails the whole call.
	SendBatch(ctx context.Context, b Binding, bodies [][]byte) error
	// SendTextBatch is SendBatch for text messages.
	SendTextBatch(ctx context.Context, b Binding, messages []string) error
}

// Subscription represents an active push style consume on a queue.
type Subscription interface {
	// Results yields one Result per processed delivery and is closed when the consume stops.
	Results() <-chan Result
	// Done is closed once the consume loop has fully stopped.
	Done() <-chan struct{}
	// Cancel stops the consume and waits for it to finish.
	Cancel()
}

// Consumer receives messages from a broker over a single owned channel.
// Deliveries are acknowledged manually.
type Consumer interface {
	io.Closer
	Notifier

	// Fetch pulls at most one message from the queue without blocking.
	// The empty Delivery is returned when nothing is pending.
	Fetch(ctx context.Context, queue string) (Delivery, error)
	// Ack acknowledges a single delivery.
	Ack(ctx context.Context, tag uint64) error
	// Requeue negatively acknowledges a single delivery and asks the broker to redeliver it.
	Requeue(ctx context.Context, tag uint64) error
	// Reject rejects a single delivery without requeue.
	Reject(ctx context.Context, tag uint64) error
	// Consume declares the binding and starts pushing deliveries to handler until cancelled.
	Consume(ctx context.Context, b Binding, handler Handler) (Subscription, error)
	// Subscribe declares the binding and blocks until one delivery has been processed
	// or the configured maximum wait has elapsed.
	Subscribe(ctx context.Context, b Binding, handler Handler) (Result, error)
	// QueueLength returns the number of messages ready in the queue.
	QueueLength(ctx context.Context, queue string) (int, error)
	// DeleteQueue deletes the queue, returning the number of messages it held.
	DeleteQueue(ctx context.Context, queue string) (int, error)
}
