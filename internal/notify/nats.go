package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSink mirrors notifications onto a JetStream subject so other systems
// (dashboards, archival consumers) can observe milestone traffic.
type NATSSink struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NotificationEvent is the wire payload published per notification.
type NotificationEvent struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNATSSink connects to NATS and prepares a JetStream publisher.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS notification sink initialized",
		"url", url,
		"subject", subject)

	return &NATSSink{conn: conn, js: js, subject: subject}, nil
}

// Send publishes one notification event.
func (n *NATSSink) Send(ctx context.Context, text string) error {
	data, err := json.Marshal(NotificationEvent{Text: text, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := n.js.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (n *NATSSink) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
