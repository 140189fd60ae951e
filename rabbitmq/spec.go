package rabbitmq

import (
	"context"
	"io"

	"github.com/rabbitmq/amqp091-go"
)

// the file contains interfaces for the base amqp091 library, this is so we can easily override in tests, and it also
// limits the functionality to what we need.

var (
	dialConfig = dialAMQP091 // dialConfig is the dialer function to use to connect to amqp091 with config
	newChannel = openChannel // newChannel opens a channel on an established connection
	newTag     = consumerTag // newTag generates a unique consumer tag
)

// dialAMQP091 wraps amqp091.DialConfig so a failed dial never yields a typed nil interface.
func dialAMQP091(addr string, c amqp091.Config) (amqp091Connection, error) {
	conn, err := amqp091.DialConfig(addr, c)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// openChannel opens a raw amqp091 channel and adapts it to amqp091Channel.
func openChannel(conn amqp091Connection) (amqp091Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return &channelAdapter{ch}, nil
}

// confirmation is the part of amqp091.DeferredConfirmation we wait on.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// see: github.com/rabbitmq/amqp091-go/channel.go
type amqp091Channel interface {
	io.Closer
	IsClosed() bool
	Qos(count, size int, global bool) error
	Confirm(noWait bool) error
	ExchangeDeclare(name, typ string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(queue, routingKey, exchange string, noWait bool, args amqp091.Table) error
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	PublishDeferred(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) (confirmation, error)
	Get(queue string, autoAck bool) (amqp091.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Reject(tag uint64, requeue bool) error
	Cancel(consumerName string, noWait bool) error
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
	Consume(
		queue, consumerName string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp091.Table,
	) (<-chan amqp091.Delivery, error)
}

// see: github.com/rabbitmq/amqp091-go/connection.go
type amqp091Connection interface {
	io.Closer
	IsClosed() bool
	Channel() (*amqp091.Channel, error)
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
}

// channelAdapter narrows *amqp091.Channel to amqp091Channel.
type channelAdapter struct {
	*amqp091.Channel
}

// PublishDeferred publishes a message with neither the mandatory nor immediate flag.
// The returned confirmation is nil when the channel is not in confirm mode.
func (c *channelAdapter) PublishDeferred(
	ctx context.Context,
	exchange, routingKey string,
	msg amqp091.Publishing,
) (confirmation, error) {
	dc, err := c.Channel.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil || dc == nil {
		return nil, err
	}
	return dc, nil
}
