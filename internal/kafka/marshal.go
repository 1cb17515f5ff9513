package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/segmentio/kafka-go"
)

// DecodeEnvelope reads the envelope written by Producer.PublishEvent.
func DecodeEnvelope(m kafka.Message) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes a specific payload out of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
