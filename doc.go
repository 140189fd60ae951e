// Package messaging defines the broker-agnostic surface of a small AMQP publish/consume library.
//
// The package holds the configuration types (and their validation), the topology binding used
// when declaring exchanges and queues, the delivery and result values handed back to callers and
// the interfaces a broker binding has to satisfy. It knows nothing about a concrete client library.
//
// A typical caller loads and verifies configuration, opens a publisher or consumer from a binding
// implementation and closes it once done:
//
//	cfg, err := messaging.LoadConnectionConfig("RABBITMQ")
//	if err != nil {
//		return err
//	}
//
//	pub, err := rabbitmq.NewPublisher(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pub.Close()
//
//	err = pub.SendText(ctx, messaging.Binding{Queue: "orders", Exchange: "shop", RoutingKey: "orders"}, "hello")
//
// The only implementation provided at the time of writing is:
// - rabbitmq (github.com/jacklaaa89/messaging/rabbitmq)
package messaging
