package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds connection settings for the event bus.
type NATSConfig struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NATSPublisher publishes JSON events on <prefix>.<subject>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the bus.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect event bus: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Publish marshals the payload and sends it on the prefixed subject.
func (p *NATSPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}
	if err := p.conn.Publish(full, data); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
