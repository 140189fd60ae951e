package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// defaultTestWait the maximum wait used by consumers under test.
const defaultTestWait = 200 * time.Millisecond

type errorFunc func() error

type mockAMQPChannelHandlers struct {
	Close               errorFunc
	Confirm             errorFunc
	IsClosed            func() bool
	Qos                 func(count, size int, global bool) error
	ExchangeDeclare     func(name, typ string, args amqp091.Table) error
	QueueDeclare        func(name string, args amqp091.Table) (amqp091.Queue, error)
	QueueDeclarePassive func(name string) (amqp091.Queue, error)
	QueueBind           func(queue, routingKey, exchange string) error
	QueueDelete         func(name string) (int, error)
	PublishDeferred     func(exchange, routingKey string, msg amqp091.Publishing) (confirmation, error)
	Get                 func(queue string, autoAck bool) (amqp091.Delivery, bool, error)
	Ack                 func(tag uint64, multiple bool) error
	Nack                func(tag uint64, multiple, requeue bool) error
	Reject              func(tag uint64, requeue bool) error
	Cancel              func(consumerName string) error
	Consume             func(queue, consumerName string, autoAck bool) (<-chan amqp091.Delivery, error)
	NotifyClose         func(ch chan *amqp091.Error) chan *amqp091.Error
}

// newDefaultAMQPChannelHandlers generates a default set of handlers.
func newDefaultAMQPChannelHandlers() mockAMQPChannelHandlers {
	return mockAMQPChannelHandlers{
		Close:           func() error { return nil },
		Confirm:         func() error { return nil },
		IsClosed:        func() bool { return false },
		Qos:             func(_, _ int, _ bool) error { return nil },
		ExchangeDeclare: func(_, _ string, _ amqp091.Table) error { return nil },
		QueueDeclare: func(name string, _ amqp091.Table) (amqp091.Queue, error) {
			return amqp091.Queue{Name: name}, nil
		},
		QueueDeclarePassive: func(name string) (amqp091.Queue, error) {
			return amqp091.Queue{Name: name}, nil
		},
		QueueBind:   func(_, _, _ string) error { return nil },
		QueueDelete: func(_ string) (int, error) { return 0, nil },
		PublishDeferred: func(_, _ string, _ amqp091.Publishing) (confirmation, error) {
			return &mockConfirmation{ack: true}, nil
		},
		Get: func(_ string, _ bool) (amqp091.Delivery, bool, error) {
			return amqp091.Delivery{}, false, nil
		},
		Ack:    func(_ uint64, _ bool) error { return nil },
		Nack:   func(_ uint64, _, _ bool) error { return nil },
		Reject: func(_ uint64, _ bool) error { return nil },
		Cancel: func(_ string) error { return nil },
		Consume: func(_, _ string, _ bool) (<-chan amqp091.Delivery, error) {
			ch := make(chan amqp091.Delivery)
			close(ch)
			return ch, nil
		},
		NotifyClose: func(ch chan *amqp091.Error) chan *amqp091.Error {
			close(ch)
			return ch
		},
	}
}

type mockAMQPChannel struct {
	h mockAMQPChannelHandlers
}

func (m *mockAMQPChannel) Close() error {
	return m.h.Close()
}
func (m *mockAMQPChannel) IsClosed() bool {
	return m.h.IsClosed()
}
func (m *mockAMQPChannel) Qos(count, size int, global bool) error {
	return m.h.Qos(count, size, global)
}
func (m *mockAMQPChannel) Confirm(_ bool) error {
	return m.h.Confirm()
}
func (m *mockAMQPChannel) ExchangeDeclare(name, typ string, _, _, _, _ bool, args amqp091.Table) error {
	return m.h.ExchangeDeclare(name, typ, args)
}
func (m *mockAMQPChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp091.Table) (amqp091.Queue, error) {
	return m.h.QueueDeclare(name, args)
}
func (m *mockAMQPChannel) QueueDeclarePassive(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return m.h.QueueDeclarePassive(name)
}
func (m *mockAMQPChannel) QueueBind(queue, routingKey, exchange string, _ bool, _ amqp091.Table) error {
	return m.h.QueueBind(queue, routingKey, exchange)
}
func (m *mockAMQPChannel) QueueDelete(name string, _, _, _ bool) (int, error) {
	return m.h.QueueDelete(name)
}
func (m *mockAMQPChannel) PublishDeferred(_ context.Context, exchange, routingKey string, msg amqp091.Publishing) (confirmation, error) {
	return m.h.PublishDeferred(exchange, routingKey, msg)
}
func (m *mockAMQPChannel) Get(queue string, autoAck bool) (amqp091.Delivery, bool, error) {
	return m.h.Get(queue, autoAck)
}
func (m *mockAMQPChannel) Ack(tag uint64, multiple bool) error {
	return m.h.Ack(tag, multiple)
}
func (m *mockAMQPChannel) Nack(tag uint64, multiple, requeue bool) error {
	return m.h.Nack(tag, multiple, requeue)
}
func (m *mockAMQPChannel) Reject(tag uint64, requeue bool) error {
	return m.h.Reject(tag, requeue)
}
func (m *mockAMQPChannel) Cancel(consumerName string, _ bool) error {
	return m.h.Cancel(consumerName)
}
func (m *mockAMQPChannel) Consume(queue, consumerName string, autoAck, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
	return m.h.Consume(queue, consumerName, autoAck)
}
func (m *mockAMQPChannel) NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error {
	return m.h.NotifyClose(rcv)
}

type mockAMQPConnectionHandlers struct {
	Close       errorFunc
	IsClosed    func() bool
	Channel     func() (*amqp091.Channel, error)
	NotifyClose func(ch chan *amqp091.Error) chan *amqp091.Error
}

// newDefaultAMQPConnectionHandlers generates a default set of handlers.
func newDefaultAMQPConnectionHandlers() mockAMQPConnectionHandlers {
	return mockAMQPConnectionHandlers{
		Close:    func() error { return nil },
		IsClosed: func() bool { return false },
		Channel: func() (*amqp091.Channel, error) {
			return &amqp091.Channel{}, nil
		},
		NotifyClose: func(ch chan *amqp091.Error) chan *amqp091.Error {
			close(ch)
			return ch
		},
	}
}

type mockAMQPConnection struct {
	h mockAMQPConnectionHandlers
}

func (m *mockAMQPConnection) Close() error {
	return m.h.Close()
}
func (m *mockAMQPConnection) IsClosed() bool {
	return m.h.IsClosed()
}
func (m *mockAMQPConnection) Channel() (*amqp091.Channel, error) {
	return m.h.Channel()
}
func (m *mockAMQPConnection) NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error {
	return m.h.NotifyClose(rcv)
}

// mockConfirmation resolves to ack, or blocks until ctx is done when block is set.
type mockConfirmation struct {
	ack   bool
	err   error
	block bool
}

func (m *mockConfirmation) WaitContext(ctx context.Context) (bool, error) {
	if m.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return m.ack, m.err
}

// mockDeliveries is a delivery stream which is closed once cancelled, as amqp091 does.
type mockDeliveries struct {
	once sync.Once
	ch   chan amqp091.Delivery
}

func newMockDeliveries(ds ...amqp091.Delivery) *mockDeliveries {
	m := &mockDeliveries{ch: make(chan amqp091.Delivery, len(ds)+1)}
	for _, d := range ds {
		m.ch <- d
	}
	return m
}

func (m *mockDeliveries) cancel() {
	m.once.Do(func() { close(m.ch) })
}

// setupBroker swaps the dialer so endpoints open on a mock channel using handlers h.
// the dialed connection uses the default handlers unless some are given.
func setupBroker(t *testing.T, h mockAMQPChannelHandlers, ch ...mockAMQPConnectionHandlers) {
	t.Helper()

	ch0 := newDefaultAMQPConnectionHandlers()
	if len(ch) > 0 {
		ch0 = ch[0]
	}

	originalDial, originalChannel := dialConfig, newChannel
	dialConfig = func(_ string, _ amqp091.Config) (amqp091Connection, error) {
		return &mockAMQPConnection{h: ch0}, nil
	}
	newChannel = func(_ amqp091Connection) (amqp091Channel, error) {
		return &mockAMQPChannel{h: h}, nil
	}

	t.Cleanup(func() {
		dialConfig = originalDial
		newChannel = originalChannel
	})
}

// validConfig generates a configuration which passes verification.
func validConfig() messaging.ConnectionConfig {
	prefetch := uint16(5)
	lazy := false
	return messaging.ConnectionConfig{
		Host:          "localhost",
		Port:          5672,
		Username:      "guest",
		Password:      "guest",
		MaxWait:       defaultTestWait,
		PrefetchCount: &prefetch,
		LazyQueue:     &lazy,
		Vhost:         "/",
	}
}
