package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// ErrUnsupportedEvent marks envelope types the analytics sink does not
// record. The order events topic carries every domain event; the sink only
// cares about the terminal ones.
var ErrUnsupportedEvent = errors.New("unsupported analytics event type")

// Envelope is the decoded order event as it arrives from Pub/Sub.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
