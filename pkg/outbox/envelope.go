package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who caused the event: a buyer, an operator, or neither
// when a reconciliation job acted on its own.
type ActorRef struct {
	BuyerID    *uuid.UUID `json:"buyerId,omitempty"`
	OperatorID *uuid.UUID `json:"operatorId,omitempty"`
	Role       string     `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// BuyerActor builds an ActorRef for buyer-triggered events.
func BuyerActor(buyerID uuid.UUID) *ActorRef {
	id := buyerID
	return &ActorRef{BuyerID: &id, Role: "buyer"}
}

// OperatorActor builds an ActorRef for operator-triggered events.
func OperatorActor(operatorID uuid.UUID, role string) *ActorRef {
	id := operatorID
	return &ActorRef{OperatorID: &id, Role: role}
}
