package natsintake

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Conn is the subset of a NATS connection the consumer uses.
type Conn interface {
	Subscribe(subject string, handler func(Message)) (unsubscribe func() error, err error)
	Publish(subject string, data []byte) error
}

// natsConn adapts *nats.Conn to Conn.
type natsConn struct {
	nc *nats.Conn
}

// Connect dials a NATS server.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("stocklog"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// NewConn wraps a NATS connection.
func NewConn(nc *nats.Conn) Conn {
	return natsConn{nc: nc}
}

func (c natsConn) Subscribe(subject string, handler func(Message)) (func() error, error) {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(Message{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Drain, nil
}

func (c natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}
