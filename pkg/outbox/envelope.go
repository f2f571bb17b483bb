package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// EnvelopeSource tags every message this service publishes.
const EnvelopeSource = "grocer-backend"

// ActorRef is the user whose request produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is what gets stored in outbox_events.payload and published
// as the message body. Data holds the event-specific document.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type,omitempty"`
	AggregateID uuid.UUID             `json:"aggregate_id"`
	Source      string                `json:"source,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

func (e PayloadEnvelope) validate() error {
	switch {
	case e.Version <= 0:
		return errors.New("envelope version missing")
	case e.EventID == "":
		return errors.New("envelope event id missing")
	case len(e.Data) == 0:
		return errors.New("envelope data missing")
	}
	return nil
}
