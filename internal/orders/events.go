package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated               = "OrderCreated"
	EventOrderUpdated               = "OrderUpdated"
	EventOrderDeleted               = "OrderDeleted"
	EventStockCompensationRequested = "StockCompensationRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id when there is one
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Publisher ships envelopes to the broker. Implementations must not block.
type Publisher interface {
	PublishEvent(topic string, key []byte, env Envelope) error
}

// ---- payloads ----

type OrderPayload struct {
	OrderID          int64   `json:"order_id"`
	UserID           int64   `json:"user_id"`
	ProductID        int64   `json:"product_id"`
	Quantity         int     `json:"quantity"`
	PreviousQuantity int     `json:"previous_quantity,omitempty"`
	TotalPrice       float64 `json:"total_price"`
	StockRestored    bool    `json:"stock_restored,omitempty"`
}

// StockCompensationPayload asks the reconciler to add StockDelta back to the
// product. A negative delta takes stock away again.
type StockCompensationPayload struct {
	OrderID    int64  `json:"order_id,omitempty"`
	UserID     int64  `json:"user_id"`
	ProductID  int64  `json:"product_id"`
	StockDelta int    `json:"stock_delta"`
	Operation  string `json:"operation"` // create | update | delete
	Reason     string `json:"reason"`
}
