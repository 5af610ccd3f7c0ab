// Package notify delivers order confirmations outside the request path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderConfirmation is the payload sent once an order is committed.
type OrderConfirmation struct {
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// Notifier sends order confirmations.
type Notifier interface {
	OrderPlaced(ctx context.Context, confirmation OrderConfirmation) error
}

// LogNotifier writes confirmations to the log. Used when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) OrderPlaced(_ context.Context, c OrderConfirmation) error {
	n.logger.Info().
		Int64("order_id", c.OrderID).
		Int64("user_id", c.UserID).
		Str("email", c.Email).
		Str("total", c.Total.StringFixed(2)).
		Int("items", c.ItemCount).
		Msg("order confirmation")
	return nil
}

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes confirmations as JSON on a NATS subject.
type NATSNotifier struct {
	conn    publisher
	subject string
}

func NewNATSNotifier(conn publisher, subject string) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subject}
}

// ConnectNATS dials the broker with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("solar-store-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func (n *NATSNotifier) OrderPlaced(ctx context.Context, c OrderConfirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal confirmation: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("notify: failed to publish order %d: %w", c.OrderID, err)
	}
	return nil
}
