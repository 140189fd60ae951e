package rabbitmq

import (
	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// notifier helper interface which wraps notification methods
// which are usually shared by different types.
type notifier interface {
	// NotifyClose the internal amqp091 function defined on both
	// channels and connections which set up notifications for errors.
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
}

// amqpError represents a wrapped amqp091.Error
type amqpError struct {
	err *amqp091.Error
}

// Error implements the error interface.
func (a *amqpError) Error() string {
	return a.err.Error()
}

// Unwrap returns the original amqp091 error.
func (a *amqpError) Unwrap() error {
	return a.err
}

// Code returns the AMQP error code.
func (a *amqpError) Code() int {
	return a.err.Code
}

// Reason returns the error description
func (a *amqpError) Reason() string {
	return a.err.Reason
}

// Recover whether the error is recoverable.
func (a *amqpError) Recover() bool {
	return a.err.Recover
}

// FromServer whether the close originated from the client or server.
func (a *amqpError) FromServer() bool {
	return a.err.Server
}

// handleNotifyError helper function to handle notification of errors.
// fn is called for every error the broker reports before the notification channel is closed.
func handleNotifyError(ch notifier, fn messaging.ErrorNotificationFunc) {
	rcv := make(chan *amqp091.Error, 1)
	ch.NotifyClose(rcv)

	go func() {
		for e := range rcv {
			if e == nil {
				continue
			}
			fn(&amqpError{e})
		}
	}()
}
