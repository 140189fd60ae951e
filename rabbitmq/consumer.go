package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// Consumer receives messages over a single channel with manual acknowledgement.
type Consumer struct {
	*endpoint

	subsMu sync.Mutex
	subs   map[string]*Subscription // subs active consumes keyed by consumer tag.
}

var _ messaging.Consumer = (*Consumer)(nil)

// NewConsumer verifies cfg, connects to the broker, opens a channel and applies the prefetch count.
//
// The prefetch count is applied globally, so it caps the unacknowledged deliveries shared by
// every consume on the channel rather than each one. The connection is closed when ctx is done.
func NewConsumer(ctx context.Context, cfg messaging.ConnectionConfig, opts ...Option) (*Consumer, error) {
	e, err := open(ctx, cfg, "consumer", opts)
	if err != nil {
		return nil, err
	}

	err = e.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.Qos(int(cfg.Prefetch()), 0, true)
	})
	if err != nil {
		logError(e.log, e.Close(), "failed to release consumer")
		return nil, fmt.Errorf("failed to set prefetch count: %w", err)
	}

	return &Consumer{endpoint: e, subs: make(map[string]*Subscription)}, nil
}

// Fetch pulls at most one message from the queue, leaving it unacknowledged.
// The empty Delivery is returned when the queue has nothing pending.
// The queue is not declared, it has to exist already.
func (c *Consumer) Fetch(ctx context.Context, queue string) (messaging.Delivery, error) {
	var (
		d  amqp091.Delivery
		ok bool
	)

	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var gErr error
		d, ok, gErr = ch.Get(queue, false)
		return gErr
	})
	if err != nil {
		return messaging.Delivery{}, fmt.Errorf("failed to fetch from queue %q: %w", queue, err)
	}

	if !ok {
		return messaging.Delivery{}, nil
	}

	return toDelivery(d), nil
}

// Ack acknowledges a single delivery.
func (c *Consumer) Ack(ctx context.Context, tag uint64) error {
	return c.onDelivery(ctx, tag, func(ch amqp091Channel) error {
		return ch.Ack(tag, false)
	})
}

// Requeue negatively acknowledges a single delivery and returns it to the queue,
// it may be redelivered to any consumer.
func (c *Consumer) Requeue(ctx context.Context, tag uint64) error {
	return c.onDelivery(ctx, tag, func(ch amqp091Channel) error {
		return ch.Nack(tag, false, true)
	})
}

// Reject rejects a single delivery without requeue. The broker drops it, or dead-letters it
// when the queue is configured to.
func (c *Consumer) Reject(ctx context.Context, tag uint64) error {
	return c.onDelivery(ctx, tag, func(ch amqp091Channel) error {
		return ch.Reject(tag, false)
	})
}

// onDelivery guards delivery operations against the empty delivery,
// the broker closes the channel on an unknown tag.
func (c *Consumer) onDelivery(ctx context.Context, tag uint64, fn func(ch amqp091Channel) error) error {
	if tag == 0 {
		return messaging.ErrEmptyDelivery
	}

	return c.onChannel(ctx, fn)
}

// Consume declares the binding and pushes every delivery on the queue to handler until the
// subscription is cancelled or ctx is done.
//
// A delivery is acknowledged when handler returns nil. When handler fails, or panics, the
// delivery is rejected with requeue and the failure is reported in its Result.
// Results must be drained for the consume to make progress.
func (c *Consumer) Consume(ctx context.Context, b messaging.Binding, handler messaging.Handler) (messaging.Subscription, error) {
	s, err := c.consume(ctx, b, handler, 0)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Subscribe declares the binding and blocks until a single delivery has been processed or the
// configured maximum wait has elapsed, whichever comes first.
//
// The consume is always cancelled before Subscribe returns, so nothing is processed after the
// call unobserved. On timeout the returned Result has Received() == false.
func (c *Consumer) Subscribe(ctx context.Context, b messaging.Binding, handler messaging.Handler) (messaging.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	s, err := c.consume(ctx, b, handler, 1)
	if err != nil {
		return messaging.Result{}, err
	}
	defer s.Cancel()

	// results is closed once the consume stops, either after one
	// delivery or when ctx is done.
	r, ok := <-s.Results()
	if ok {
		return r, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return messaging.Result{}, ctx.Err()
	}

	c.log.Debug().Str("queue", b.Queue).Dur("max_wait", c.cfg.MaxWait).Msg("no delivery before timeout")
	return messaging.Result{}, nil
}

// consume starts consuming from the bound queue, limit caps how many deliveries are handled,
// zero meaning no limit.
func (c *Consumer) consume(ctx context.Context, b messaging.Binding, handler messaging.Handler, limit int) (*Subscription, error) {
	if handler == nil {
		return nil, messaging.ErrNilHandler
	}

	if err := c.DeclareTopology(ctx, b); err != nil {
		return nil, err
	}

	tag := newTag()

	var deliveries <-chan amqp091.Delivery
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var cErr error
		deliveries, cErr = ch.Consume(b.Queue, tag, false, false, false, false, nil)
		return cErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume from queue %q: %w", b.Queue, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		tag:      tag,
		consumer: c,
		cancel:   cancel,
		results:  make(chan messaging.Result, 1),
		done:     make(chan struct{}),
		log:      c.log.With().Str("queue", b.Queue).Str("consumer", tag).Logger(),
	}

	c.register(s)
	go s.run(ctx, deliveries, handler, limit)

	return s, nil
}

// handle runs handler for a single delivery and settles it.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler messaging.Handler) messaging.Result {
	r := messaging.Result{Delivery: toDelivery(d)}

	if err := safeHandle(ctx, handler, r.Delivery); err != nil {
		r.Err = &messaging.HandlerError{Tag: d.DeliveryTag, Err: err}
		c.log.Error().Err(err).Uint64("tag", d.DeliveryTag).Msg("handler failed, requeueing delivery")

		rErr := c.withChannel(func(ch amqp091Channel) error {
			return ch.Reject(d.DeliveryTag, true)
		})
		if rErr != nil {
			r.Err = errors.Join(r.Err, fmt.Errorf("failed to requeue delivery %d: %w", d.DeliveryTag, rErr))
		}

		return r
	}

	err := c.withChannel(func(ch amqp091Channel) error {
		return ch.Ack(d.DeliveryTag, false)
	})
	if err != nil {
		r.Err = fmt.Errorf("failed to ack delivery %d: %w", d.DeliveryTag, err)
	}

	return r
}

// safeHandle runs handler, converting a panic into an error.
func safeHandle(ctx context.Context, handler messaging.Handler, d messaging.Delivery) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()

	return handler(ctx, d)
}

// register tracks an active consume so Close can stop it.
func (c *Consumer) register(s *Subscription) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[s.tag] = s
}

// deregister removes a consume once it has stopped.
func (c *Consumer) deregister(tag string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, tag)
}

// Close cancels every active consume and then releases the channel and the connection.
func (c *Consumer) Close() error {
	c.subsMu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subsMu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}

	return c.endpoint.Close()
}
