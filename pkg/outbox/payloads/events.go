package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout places an order.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID               `json:"order_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	FulfillmentMethod enums.FulfillmentMethod `json:"fulfillment_method"`
	GoodsTotalCents   int64                   `json:"goods_total_cents"`
	DeliveryCostCents int64                   `json:"delivery_cost_cents"`
	UsedPoints        int64                   `json:"used_points"`
	AmountDueCents    int64                   `json:"amount_due_cents"`
	ItemCount         int                     `json:"item_count"`
}

// OrderPaidEvent is emitted when payment settles, whether through the
// provider webhook or the points-only path.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	AmountCents int64     `json:"amount_cents"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
}

// ClaimAcceptedEvent is emitted when the delivery provider accepts a claim
// and the order moves to transferring.
type ClaimAcceptedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	ClaimID string    `json:"claim_id"`
}

// OrderFinishedEvent is emitted when an order reaches its happy terminal
// state: picked up or delivered.
type OrderFinishedEvent struct {
	OrderID           uuid.UUID               `json:"order_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	FulfillmentMethod enums.FulfillmentMethod `json:"fulfillment_method"`
	GoodsTotalCents   int64                   `json:"goods_total_cents"`
	DeliveryCostCents int64                   `json:"delivery_cost_cents"`
	UsedPoints        int64                   `json:"used_points"`
	FinishedAt        time.Time               `json:"finished_at"`
}

// OrderCancelledEvent is emitted on every cancellation path: buyer or
// operator cancel, pending-payment expiry, stuck-claim cleanup, and
// provider-terminal resync.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Reason         string            `json:"reason,omitempty"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}
