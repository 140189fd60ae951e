package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// Publisher publishes messages over a single channel in confirm mode.
type Publisher struct {
	*endpoint
}

var _ messaging.Publisher = (*Publisher)(nil)

// NewPublisher verifies cfg, connects to the broker, opens a channel and enables publish confirms.
// The connection is closed when ctx is done.
func NewPublisher(ctx context.Context, cfg messaging.ConnectionConfig, opts ...Option) (*Publisher, error) {
	e, err := open(ctx, cfg, "publisher", opts)
	if err != nil {
		return nil, err
	}

	err = e.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.Confirm(false)
	})
	if err != nil {
		logError(e.log, e.Close(), "failed to release publisher")
		return nil, fmt.Errorf("failed to enable publish confirms: %w", err)
	}

	return &Publisher{e}, nil
}

// Send declares the binding and publishes a single message.
// Single sends do not wait for the broker to confirm them.
func (p *Publisher) Send(ctx context.Context, b messaging.Binding, body []byte) error {
	if err := p.DeclareTopology(ctx, b); err != nil {
		return err
	}

	return p.onChannel(ctx, func(ch amqp091Channel) error {
		_, err := ch.PublishDeferred(ctx, b.Exchange, b.RoutingKey, p.publishing(body))
		return err
	})
}

// SendText declares the binding and publishes a single UTF-8 text message.
func (p *Publisher) SendText(ctx context.Context, b messaging.Binding, message string) error {
	return p.Send(ctx, b, []byte(message))
}

// SendBatch declares the binding, publishes every message and waits until all of them are confirmed.
// The call fails if any message is negatively acknowledged or the confirmations do not arrive in time.
func (p *Publisher) SendBatch(ctx context.Context, b messaging.Binding, bodies [][]byte) error {
	if err := p.DeclareTopology(ctx, b); err != nil {
		return err
	}

	if len(bodies) == 0 {
		return nil
	}

	confirms := make([]confirmation, 0, len(bodies))
	err := p.onChannel(ctx, func(ch amqp091Channel) error {
		for i, body := range bodies {
			c, err := ch.PublishDeferred(ctx, b.Exchange, b.RoutingKey, p.publishing(body))
			if err != nil {
				return fmt.Errorf("failed to publish message %d of %d: %w", i+1, len(bodies), err)
			}
			confirms = append(confirms, c)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return p.waitForConfirms(ctx, confirms)
}

// SendTextBatch is SendBatch for UTF-8 text messages.
func (p *Publisher) SendTextBatch(ctx context.Context, b messaging.Binding, messages []string) error {
	bodies := make([][]byte, len(messages))
	for i, m := range messages {
		bodies[i] = []byte(m)
	}

	return p.SendBatch(ctx, b, bodies)
}

// SendInBatches verifies the topology and sends bodies in batches of its BatchSize,
// each batch confirmed before the next is published. Queues are declared lazy when
// the connection is configured to.
func (p *Publisher) SendInBatches(ctx context.Context, t messaging.TopologyConfig, bodies [][]byte) error {
	if err := t.Verify(); err != nil {
		return err
	}

	b := t.Binding(p.cfg.Lazy())
	for start := 0; start < len(bodies); start += t.BatchSize {
		end := min(start+t.BatchSize, len(bodies))
		if err := p.SendBatch(ctx, b, bodies[start:end]); err != nil {
			return fmt.Errorf("failed to send batch starting at message %d: %w", start+1, err)
		}
	}

	return nil
}

// waitForConfirms blocks until every confirmation has resolved or the confirm timeout elapses.
func (p *Publisher) waitForConfirms(ctx context.Context, confirms []confirmation) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.confirmTimeout)
	defer cancel()

	nacked := 0
	for _, c := range confirms {
		if c == nil {
			nacked++ // the channel is not in confirm mode.
			continue
		}

		ack, err := c.WaitContext(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", messaging.ErrConfirmTimeout, p.opts.confirmTimeout)
		}
		if err != nil {
			return err
		}
		if !ack {
			nacked++
		}
	}

	if nacked > 0 {
		p.log.Error().Int("nacked", nacked).Int("total", len(confirms)).Msg("batch not confirmed")
		return fmt.Errorf("%w: %d of %d messages", messaging.ErrNotConfirmed, nacked, len(confirms))
	}

	return nil
}

// publishing builds the message to publish, no properties are set unless content
// type detection was requested.
func (p *Publisher) publishing(body []byte) amqp091.Publishing {
	msg := amqp091.Publishing{Body: body}
	if p.opts.detectContentType {
		msg.ContentType = mimetype.Detect(body).String()
	}

	return msg
}
