package rabbitmq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jacklaaa89/messaging"
)

// Subscription represents a single active consume started by Consumer.Consume or Consumer.Subscribe.
type Subscription struct {
	tag      string             // tag the consumer tag registered with the broker.
	consumer *Consumer          // consumer the owner of the channel the consume runs on.
	cancel   context.CancelFunc // cancel stops the consume loop.
	log      zerolog.Logger

	results chan messaging.Result
	done    chan struct{}
}

var _ messaging.Subscription = (*Subscription)(nil)

// Tag returns the consumer tag the consume is registered under.
func (s *Subscription) Tag() string { return s.tag }

// Results yields one Result per processed delivery and is closed when the consume stops.
func (s *Subscription) Results() <-chan messaging.Result { return s.results }

// Done is closed once the consume has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel stops the consume and waits for it to finish. Deliveries received from the broker
// but not yet handled are returned to the queue.
// It must not be called from within the handler.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// run pushes deliveries to handler until ctx is done, the delivery channel closes
// or limit deliveries have been handled.
func (s *Subscription) run(
	ctx context.Context,
	deliveries <-chan amqp091.Delivery,
	handler messaging.Handler,
	limit int,
) {
	defer close(s.done)
	defer s.consumer.deregister(s.tag)
	defer close(s.results)
	defer s.stop(deliveries)

	s.log.Debug().Msg("consume started")

	for handled := 0; limit == 0 || handled < limit; {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				s.log.Debug().Msg("delivery channel closed")
				return
			}

			if ctx.Err() != nil {
				// arrived alongside the cancellation, leave it for another consumer.
				s.requeue(d)
				return
			}

			r := s.consumer.handle(ctx, d, handler)
			handled++

			if !s.publish(ctx, r) {
				return
			}
		}
	}
}

// publish hands a result to the caller, giving up once ctx is done.
// a free slot in the buffer is always used, even when ctx is already done.
func (s *Subscription) publish(ctx context.Context, r messaging.Result) bool {
	select {
	case s.results <- r:
		return true
	default:
	}

	select {
	case s.results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// stop cancels the consume on the broker and requeues anything still buffered.
func (s *Subscription) stop(deliveries <-chan amqp091.Delivery) {
	err := s.consumer.withChannel(func(ch amqp091Channel) error {
		return ch.Cancel(s.tag, false)
	})
	if err != nil {
		// the channel is gone, and with it every unacknowledged delivery.
		return
	}

	// the delivery channel is closed once the broker has confirmed the cancel.
	for d := range deliveries {
		s.requeue(d)
	}

	s.log.Debug().Msg("consume stopped")
}

// requeue returns a delivery which was never handled to the queue.
func (s *Subscription) requeue(d amqp091.Delivery) {
	err := s.consumer.withChannel(func(ch amqp091Channel) error {
		return ch.Nack(d.DeliveryTag, false, true)
	})
	logError(s.log, err, "failed to requeue unhandled delivery")
}
