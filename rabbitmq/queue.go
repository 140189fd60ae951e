package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// QueueLength returns the number of messages ready for delivery in the queue at the time of the call.
// The queue has to exist, the broker closes the channel otherwise.
func (c *Consumer) QueueLength(ctx context.Context, queue string) (int, error) {
	var q amqp091.Queue
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var qErr error
		q, qErr = ch.QueueDeclarePassive(queue, false, false, false, false, nil)
		return qErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %q: %w", queue, err)
	}

	return q.Messages, nil
}

// AwaitQueueLength polls the queue until it holds exactly want messages or ctx is done.
// The broker reports counts asynchronously to publishing, so a confirmed batch may take a moment to show.
func (c *Consumer) AwaitQueueLength(ctx context.Context, queue string, want int) error {
	return backoff.Retry(func() error {
		n, err := c.QueueLength(ctx, queue)
		if err != nil {
			if isNotFound(err) || errors.Is(err, messaging.ErrClosed) {
				return backoff.Permanent(err)
			}
			return err
		}

		if n != want {
			return fmt.Errorf("queue %q holds %d messages, want %d", queue, n, want)
		}

		return nil
	}, newBackoff(ctx))
}

// DeleteQueue deletes the queue regardless of consumers or pending messages,
// returning the number of messages it held.
func (c *Consumer) DeleteQueue(ctx context.Context, queue string) (int, error) {
	var purged int
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var dErr error
		purged, dErr = ch.QueueDelete(queue, false, false, false)
		return dErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete queue %q: %w", queue, err)
	}

	c.log.Debug().Str("queue", queue).Int("purged", purged).Msg("queue deleted")
	return purged, nil
}
