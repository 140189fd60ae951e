package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jacklaaa89/messaging"
)

// helper types exposed from the underlined SDK package.

type (
	Config         = amqp091.Config
	Authentication = amqp091.Authentication
	PlainAuth      = amqp091.PlainAuth
)

// connection represents an amqp091.Connection owned by a single publisher or consumer.
type connection struct {
	mu     sync.RWMutex    // variable guard.
	ctx    context.Context // a context bounding the lifetime of the connection.
	log    zerolog.Logger
	closed bool // whether Close has been called.

	Connection amqp091Connection // the connection.
}

// url builds the amqp:// url for the configured broker.
func url(cfg messaging.ConnectionConfig) string {
	uri := amqp091.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    cfg.Vhost,
	}

	return uri.String()
}

// amqpConfig builds the amqp091 dial configuration for the configured broker.
func amqpConfig(cfg messaging.ConnectionConfig) Config {
	c := Config{
		SASL: []Authentication{&PlainAuth{
			Username: cfg.Username,
			Password: cfg.Password,
		}},
		Vhost:     cfg.Vhost,
		Heartbeat: cfg.Heartbeat,
	}

	if cfg.ConnectTimeout > 0 {
		c.Dial = amqp091.DefaultDial(cfg.ConnectTimeout)
	}

	return c
}

// dial connects to the configured broker. Failures are returned as-is, no retry is attempted.
func dial(ctx context.Context, cfg messaging.ConnectionConfig, log zerolog.Logger) (*connection, error) {
	conn, err := dialConfig(url(cfg), amqpConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	c := &connection{
		Connection: conn,
		ctx:        ctx,
		log:        log,
	}
	go c.background()

	log.Debug().Msg("connected to broker")
	return c, nil
}

// channel opens a new channel on the connection.
func (c *connection) channel() (amqp091Channel, error) {
	if c.IsClosed() {
		return nil, messaging.ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return newChannel(c.Connection)
}

// Close wraps the original close function.
func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil // already closed.
	}
	c.closed = true

	if isClosed(c.Connection) {
		return nil
	}

	return c.Connection.Close()
}

// IsClosed wraps the original IsClosed function.
func (c *connection) IsClosed() bool {
	if c == nil {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}

	return isClosed(c.Connection)
}

// background closes the connection once ctx is done and logs closes initiated by the broker.
// the owned channel reports the same close to any registered handlers.
func (c *connection) background() {
	c.mu.RLock()
	rcv := c.Connection.NotifyClose(make(chan *amqp091.Error, 1))
	c.mu.RUnlock()

	select {
	case <-c.ctx.Done():
		logError(c.log, c.Close(), "failed to close connection")
	case e, ok := <-rcv:
		if !ok || e == nil {
			return // graceful close.
		}
		c.log.Error().Err(e).Bool("recover", e.Recover).Msg("connection closed by broker")
	}
}
