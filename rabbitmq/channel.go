package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jacklaaa89/messaging"
)

const (
	queueModeArg  = "x-queue-mode"
	lazyQueueMode = "lazy"
)

// endpoint owns a single connection and a single channel opened on it.
// Publisher and Consumer are both built on top of an endpoint.
type endpoint struct {
	mu     sync.Mutex   // mu serialises operations on the channel.
	omitMu sync.RWMutex // mutex for events.
	closed atomic.Bool  // closed whether Close has been called.

	cfg  messaging.ConnectionConfig
	opts options
	log  zerolog.Logger

	// containers for assigned event handlers.
	closes []messaging.ErrorNotificationFunc

	conn *connection
	ch   amqp091Channel // ch the channel all operations are performed on.
}

// open verifies the configuration, then connects and opens a channel.
// nothing touches the network when the configuration is invalid.
func open(ctx context.Context, cfg messaging.ConnectionConfig, component string, opts []Option) (*endpoint, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger.With().
		Str("component", component).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Logger()

	conn, err := dial(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ch, err := conn.channel()
	if err != nil {
		logError(log, conn.Close(), "failed to close connection")
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	e := &endpoint{
		cfg:  cfg,
		opts: o,
		log:  log,
		conn: conn,
		ch:   ch,
	}

	// the channel is closed along with the connection, so this also
	// reports connection level failures.
	handleNotifyError(ch, e.omitClose)
	return e, nil
}

// NotifyClose registers a handler to be triggered when the broker or the network closes the channel.
func (e *endpoint) NotifyClose(fn messaging.ErrorNotificationFunc) {
	e.omitMu.Lock()
	defer e.omitMu.Unlock()
	if fn == nil {
		return
	}

	e.closes = append(e.closes, fn)
}

// omitClose omits a close event to all handlers.
func (e *endpoint) omitClose(err messaging.Error) {
	e.log.Error().Err(err).Int("code", err.Code()).Msg("channel closed")

	e.omitMu.RLock()
	defer e.omitMu.RUnlock()
	for _, fn := range e.closes {
		fn(err)
	}
}

// IsClosed determines if the endpoint can no longer be used.
func (e *endpoint) IsClosed() bool {
	return e.closed.Load() || isClosed(e.ch)
}

// Close releases the channel and then the connection.
// only the first call does any work, later calls return nil.
func (e *endpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if !isClosed(e.ch) {
		if err := e.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}

	if err := e.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
	}

	e.log.Debug().Msg("closed")
	return errors.Join(errs...)
}

// onChannel helper function to perform a caller initiated action on the channel.
func (e *endpoint) onChannel(ctx context.Context, fn func(ch amqp091Channel) error) error {
	if e.closed.Load() {
		return messaging.ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return e.withChannel(fn)
}

// withChannel performs an action on the channel regardless of the endpoint state.
// any error from the broker is logged before being returned.
func (e *endpoint) withChannel(fn func(ch amqp091Channel) error) error {
	e.mu.Lock()
	err := fn(e.ch)
	e.mu.Unlock()

	logError(e.log, err, "channel operation failed")
	return err
}

// DeclareTopology declares a direct exchange, a non-durable, non-exclusive, non-auto-delete queue
// and binds the queue to the exchange using the routing key. Every step is idempotent on the broker.
func (e *endpoint) DeclareTopology(ctx context.Context, b messaging.Binding) error {
	var args amqp091.Table
	if b.Lazy {
		args = amqp091.Table{queueModeArg: lazyQueueMode}
	}

	return e.onChannel(ctx, func(ch amqp091Channel) error {
		err := ch.ExchangeDeclare(b.Exchange, string(messaging.ExchangeTypeDirect), false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", b.Exchange, err)
		}

		if _, err = ch.QueueDeclare(b.Queue, false, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", b.Queue, err)
		}

		if err = ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q to %q: %w", b.Queue, b.Exchange, err)
		}

		return nil
	})
}
