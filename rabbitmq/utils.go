package rabbitmq

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// closer represents any stream which can be closed
// this is either a channel or the overall connection.
type closer interface {
	IsClosed() bool // IsClosed determines if a channel or connection is closed.
}

// isClosed helper function to check whether a connection or channel is closed.
func isClosed(ch closer) bool {
	return ch == nil || ch.IsClosed()
}

// logError helper function to log an error.
func logError(log zerolog.Logger, err error, msg string) {
	if err == nil {
		return
	}

	log.Error().Err(err).Msg(msg)
}

// consumerTag generates a consumer tag which is unique per consume process.
func consumerTag() string {
	return "messaging-" + uuid.NewString()
}

// newBackoff the function to generate the polling policy
// a variable in order to reduce the backoff in tests.
var newBackoff = defaultBackoff

// defaultBackoff generates a new backoff to use when polling the broker.
func defaultBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0 // bounded by ctx.

	return backoff.WithContext(b, ctx)
}

// isNotFound reports whether err is the broker refusing an operation on a missing entity.
func isNotFound(err error) bool {
	var aErr *amqp091.Error
	return errors.As(err, &aErr) && aErr.Code == amqp091.NotFound
}
