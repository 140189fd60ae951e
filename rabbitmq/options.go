package rabbitmq

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultConfirmTimeout = 5 * time.Second
)

type options struct {
	logger            zerolog.Logger
	confirmTimeout    time.Duration
	detectContentType bool
}

// Option configures a Publisher or Consumer.
type Option func(o *options)

// WithLogger returns an Option which sets the logger used by the publisher or consumer.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConfirmTimeout returns an Option which sets how long a batch publish waits for the
// broker to confirm every message.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *options) {
		o.confirmTimeout = d
	}
}

// WithContentTypeDetection returns an Option which sets the content type of every published
// message from its payload. Messages are published without properties otherwise.
func WithContentTypeDetection() Option {
	return func(o *options) {
		o.detectContentType = true
	}
}

func defaultOptions() options {
	return options{
		logger:         zerolog.Nop(),
		confirmTimeout: defaultConfirmTimeout,
	}
}
