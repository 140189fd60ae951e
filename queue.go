package messaging

import (
	"context"
	"fmt"
)

// ExchangeType represents a type of exchange.
type ExchangeType string

// ExchangeTypeDirect represents a direct exchange
// this is where a message is posted to bound queues where the routing key matches exactly.
const ExchangeTypeDirect ExchangeType = "direct"

// Binding names a queue, the exchange it is bound to and the routing key of the binding.
// Declaring a binding is idempotent on the broker.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Lazy       bool // Lazy declares the queue in lazy mode.
}

// String implements fmt.Stringer.
func (b Binding) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", b.Exchange, b.RoutingKey, b.Queue)
}

// Delivery pairs a broker assigned delivery tag with the message payload.
//
// Tags are monotonic per channel and meaningless on any other channel.
// The zero Delivery represents "nothing was delivered", see Empty.
type Delivery struct {
	Tag         uint64
	Body        []byte
	Redelivered bool
	ContentType string
}

// Empty reports whether d is the empty sentinel returned when no message was pending.
// Brokers never hand out a zero delivery tag.
func (d Delivery) Empty() bool {
	return d.Tag == 0
}

// Text decodes the payload as UTF-8 text.
func (d Delivery) Text() string {
	return string(d.Body)
}

// Result is the outcome of processing a single pushed delivery.
type Result struct {
	Delivery Delivery
	// Err is a *HandlerError when the handler failed and the delivery was requeued,
	// or the error returned while acknowledging it.
	Err error
}

// Received reports whether a delivery was processed at all.
func (r Result) Received() bool {
	return !r.Delivery.Empty()
}

// Handler processes a single delivery. Returning nil acknowledges it,
// returning an error returns it to the queue.
type Handler func(ctx context.Context, d Delivery) error

// TextHandler adapts a function taking the decoded text payload into a Handler.
func TextHandler(fn func(ctx context.Context, message string) error) Handler {
	return func(ctx context.Context, d Delivery) error {
		return fn(ctx, d.Text())
	}
}
