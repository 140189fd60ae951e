package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ConnectionConfig holds the parameters needed to open a connection to a broker.
//
// Host, Port, Username, Password, MaxWait, PrefetchCount and LazyQueue are mandatory,
// the remaining fields fall back to their defaults when loaded from the environment.
type ConnectionConfig struct {
	Host     string `envconfig:"HOST" json:"host"`
	Port     int    `envconfig:"PORT" json:"port"`
	Username string `envconfig:"USERNAME" json:"username"`
	Password string `envconfig:"PASSWORD" json:"password,omitempty"`
	// MaxWait is the longest a subscriber blocks waiting for a single delivery.
	MaxWait time.Duration `envconfig:"MAX_WAIT" json:"max_wait"`
	// PrefetchCount caps the unacknowledged deliveries outstanding on a consumer channel.
	// Once reached the broker stops delivering until at least one of them is acknowledged.
	PrefetchCount *uint16 `envconfig:"PREFETCH_COUNT" json:"prefetch_count"`
	// LazyQueue declares queues in lazy mode, keeping messages on disk rather than in memory.
	LazyQueue *bool `envconfig:"LAZY_QUEUE" json:"lazy_queue"`

	Vhost          string        `envconfig:"VHOST" default:"/" json:"vhost"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
	Heartbeat      time.Duration `envconfig:"HEARTBEAT" default:"10s" json:"heartbeat"`
}

// Verify checks every mandatory field is populated.
// Fields are checked in a fixed order and the first absent one is reported.
func (c ConnectionConfig) Verify() error {
	switch {
	case blank(c.Host):
		return &MissingFieldError{Field: "Host"}
	case blank(c.Username):
		return &MissingFieldError{Field: "Username"}
	case blank(c.Password):
		return &MissingFieldError{Field: "Password"}
	case c.Port == 0:
		return &MissingFieldError{Field: "Port"}
	case c.MaxWait == 0:
		return &MissingFieldError{Field: "MaxWait"}
	case c.PrefetchCount == nil:
		return &MissingFieldError{Field: "PrefetchCount"}
	case c.LazyQueue == nil:
		return &MissingFieldError{Field: "LazyQueue"}
	}

	if c.Port < 0 || c.Port > 65535 {
		return &InvalidFieldError{Field: "Port", Reason: fmt.Sprintf("%d is not a valid port", c.Port)}
	}

	if c.MaxWait < 0 {
		return &InvalidFieldError{Field: "MaxWait", Reason: "must be positive"}
	}

	return nil
}

// Lazy returns the configured lazy queue flag, false when unset.
func (c ConnectionConfig) Lazy() bool {
	return c.LazyQueue != nil && *c.LazyQueue
}

// Prefetch returns the configured prefetch count, zero when unset.
func (c ConnectionConfig) Prefetch() uint16 {
	if c.PrefetchCount == nil {
		return 0
	}
	return *c.PrefetchCount
}

// TopologyConfig describes a single queue and how it is bound to its exchange.
type TopologyConfig struct {
	QueueName   string `envconfig:"NAME" json:"queue_name"`
	ExchangeKey string `envconfig:"EXCHANGE_KEY" json:"exchange_key"`
	RoutingKey  string `envconfig:"ROUTING_KEY" json:"routing_key"`
	BatchSize   int    `envconfig:"BATCH_SIZE" json:"batch_size"`
}

// Verify checks every field is populated, in the order
// QueueName, ExchangeKey, RoutingKey, BatchSize.
func (t TopologyConfig) Verify() error {
	switch {
	case blank(t.QueueName):
		return &MissingFieldError{Field: "QueueName"}
	case blank(t.ExchangeKey):
		return &MissingFieldError{Field: "ExchangeKey"}
	case blank(t.RoutingKey):
		return &MissingFieldError{Field: "RoutingKey"}
	case t.BatchSize == 0:
		return &MissingFieldError{Field: "BatchSize"}
	case t.BatchSize < 0:
		return &InvalidFieldError{Field: "BatchSize", Reason: "must be positive"}
	}

	return nil
}

// Binding converts the topology into the binding used to declare it.
func (t TopologyConfig) Binding(lazy bool) Binding {
	return Binding{
		Queue:      t.QueueName,
		Exchange:   t.ExchangeKey,
		RoutingKey: t.RoutingKey,
		Lazy:       lazy,
	}
}

// LoadConnectionConfig reads a ConnectionConfig from the environment and verifies it.
// With prefix "RABBITMQ" the host is read from RABBITMQ_HOST and so on.
func LoadConnectionConfig(prefix string) (ConnectionConfig, error) {
	var cfg ConnectionConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return ConnectionConfig{}, fmt.Errorf("unable to parse connection configuration: %w", err)
	}

	if err := cfg.Verify(); err != nil {
		return ConnectionConfig{}, err
	}

	return cfg, nil
}

// LoadTopologyConfig reads a TopologyConfig from the environment and verifies it.
// With prefix "QUEUE" the queue name is read from QUEUE_NAME and so on.
func LoadTopologyConfig(prefix string) (TopologyConfig, error) {
	var cfg TopologyConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return TopologyConfig{}, fmt.Errorf("unable to parse topology configuration: %w", err)
	}

	if err := cfg.Verify(); err != nil {
		return TopologyConfig{}, err
	}

	return cfg, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
