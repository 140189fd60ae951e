package messaging

// Error represents an error from the broker.
type Error interface {
	error

	// Code returns the AMQP reply code
	Code() int
	// Reason returns the description of the error
	Reason() string
	// Recover returns true when this error can be recovered by retrying later or with different parameters
	Recover() bool
	// FromServer returns true when initiated from the server, false when from this library
	FromServer() bool
}

// ErrorNotificationFunc the callback function type which receives
// errors from the server.
type ErrorNotificationFunc = func(e Error)

// Notifier an interface for types which omit close events.
type Notifier interface {
	// NotifyClose triggers the supplied function when the underlying connection
	// is closed by the server or the network. A graceful Close does not trigger it.
	NotifyClose(fn ErrorNotificationFunc)
}
