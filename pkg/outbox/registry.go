package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
)

// NonRetryableError signals the relay should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// Route describes how one event type leaves the outbox.
type Route struct {
	RoutingKey string
	newPayload func() any
}

var routes = map[enums.OutboxEventType]Route{
	enums.EventOrderCompleted: {
		RoutingKey: "orders.completed",
		newPayload: func() any { return &payloads.OrderCompletedEvent{} },
	},
	enums.EventStockLow: {
		RoutingKey: "stock.low",
		newPayload: func() any { return &payloads.StockLowEvent{} },
	},
}

// Resolved is a decoded outbox row ready for publishing.
type Resolved struct {
	Route    Route
	Envelope PayloadEnvelope
	Payload  any
}

// Resolve decodes a stored payload. Unknown event types and malformed JSON
// are returned as NonRetryableError.
func Resolve(eventType enums.OutboxEventType, raw json.RawMessage) (*Resolved, error) {
	route, ok := routes[eventType]
	if !ok {
		return nil, NonRetryableError{Err: fmt.Errorf("no route for event type %q", eventType)}
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, NonRetryableError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if err := envelope.validate(); err != nil {
		return nil, NonRetryableError{Err: err}
	}
	payload := route.newPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NonRetryableError{Err: fmt.Errorf("decode %s payload: %w", eventType, err)}
	}
	return &Resolved{Route: route, Envelope: envelope, Payload: payload}, nil
}
