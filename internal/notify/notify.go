// Package notify carries real-time storefront events to downstream
// consumers. Publishing is fire-and-forget: a Sink must never block its
// caller or fail the operation that triggered the event.
//
// Sinks are injected into the services that emit events; nothing in the
// process reaches for a shared ambient handle.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oakmart/storefront/internal/domain/user"
)

// Event names published by the storefront core.
const (
	EventOrderCreated = "order-created"
	EventStockUpdated = "stock-updated"
)

// OrderCreated is emitted after an order commits.
type OrderCreated struct {
	OrderID     string       `json:"orderId"`
	User        user.Summary `json:"user"`
	TotalAmount string       `json:"totalAmount"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// StockUpdated is emitted after any observable stock change.
type StockUpdated struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

// Sink receives named events with a JSON-serializable payload.
// Implementations deliver best-effort, with no delivery guarantee.
type Sink interface {
	Publish(ctx context.Context, event string, payload any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(context.Context, string, any) {}

// LogSink writes events to the application log. Used when no broker is
// configured.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink writing through lg.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) Publish(_ context.Context, event string, payload any) {
	s.lg.Info("event published",
		zap.String("event", event),
		zap.Any("payload", payload),
	)
}
