// Package amqp publishes record batches to RabbitMQ and reads downstream
// queue depths for the dispatch gate.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by this package.
type Channel interface {
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection is a broker connection that hands out channels.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Dialer opens a broker connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (Connection, error)
}

// NetDialer dials a real broker with amqp091-go.
type NetDialer struct {
	// Heartbeat is the negotiated heartbeat interval; zero uses the library default.
	Heartbeat time.Duration
	// ConnectionName is reported to the broker in the client properties.
	ConnectionName string
}

// Dial opens a connection. The context deadline, if any, bounds the TCP and
// AMQP handshake.
func (d NetDialer) Dial(ctx context.Context, url string) (Connection, error) {
	cfg := amqp.Config{
		Heartbeat:  d.Heartbeat,
		Properties: amqp.NewConnectionProperties(),
	}
	if d.ConnectionName != "" {
		cfg.Properties.SetClientConnectionName(d.ConnectionName)
	}
	if deadline, ok := ctx.Deadline(); ok {
		cfg.Dial = amqp.DefaultDial(time.Until(deadline))
	}

	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return netConnection{conn}, nil
}

type netConnection struct {
	conn *amqp.Connection
}

func (c netConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c netConnection) Close() error {
	return c.conn.Close()
}
