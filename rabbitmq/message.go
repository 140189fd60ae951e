package rabbitmq

import (
	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/messaging"
)

// toDelivery converts an amqp091 delivery into the broker-agnostic representation.
func toDelivery(d amqp091.Delivery) messaging.Delivery {
	return messaging.Delivery{
		Tag:         d.DeliveryTag,
		Body:        d.Body,
		Redelivered: d.Redelivered,
		ContentType: d.ContentType,
	}
}
