package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	"github.com/angelmondragon/kiosko-backend/pkg/pagination"
)

// ListFilters describe the inputs supported by the order list queries.
// BuyerID is forced to the authenticated buyer on buyer-facing routes and
// optional on operator routes.
type ListFilters struct {
	BuyerID           *uuid.UUID
	Status            *enums.OrderStatus
	FulfillmentMethod *enums.FulfillmentMethod
	DateFrom          *time.Time
	DateTo            *time.Time
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID                uuid.UUID               `json:"id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	Status            enums.OrderStatus       `json:"status"`
	FulfillmentMethod enums.FulfillmentMethod `json:"fulfillment_method"`
	GoodsTotalCents   int64                   `json:"goods_total_cents"`
	DeliveryCostCents int64                   `json:"delivery_cost_cents"`
	UsedPoints        int64                   `json:"used_points"`
	AmountDueCents    int64                   `json:"amount_due_cents"`
	CreatedAt         time.Time               `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderItemDetail is one reserved line with its catalog title joined in.
// TotalCents is derived from the snapshot price, never the live catalog.
type OrderItemDetail struct {
	StockPositionID uuid.UUID `json:"stock_position_id"`
	Title           string    `json:"title"`
	Quantity        int       `json:"quantity"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	TotalCents      int64     `json:"total_cents"`
}

// OrderDetail is the full order view returned by Get.
type OrderDetail struct {
	OrderSummary
	DeliveryAddress   *string           `json:"delivery_address,omitempty"`
	DeliveryPorch     *string           `json:"delivery_porch,omitempty"`
	DeliveryFloor     *string           `json:"delivery_floor,omitempty"`
	DeliveryApartment *string           `json:"delivery_apartment,omitempty"`
	DeliveryClaimID   *string           `json:"delivery_claim_id,omitempty"`
	CancelReason      *string           `json:"cancel_reason,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
	Items             []OrderItemDetail `json:"items"`
}

// ListInput carries the list query from controllers.
type ListInput struct {
	Filters ListFilters
	Limit   int
	Cursor  string
}

// ListQuery is the repository-level list input with the cursor already parsed.
type ListQuery struct {
	Filters ListFilters
	Limit   int
	Cursor  *pagination.Cursor
}

// ActorInput identifies who triggered a mutation. Reconciliation jobs leave
// both IDs nil and set a role only.
type ActorInput struct {
	BuyerID    *uuid.UUID
	OperatorID *uuid.UUID
	Role       string
}

// AdvanceStatusInput drives one guarded transition through the table.
type AdvanceStatusInput struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	Actor   ActorInput
}

// MarkPaidInput settles a pending_payment order.
type MarkPaidInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	ProviderRef string
	PaidAt      time.Time
	Actor       ActorInput
}

// AttachClaimInput records an accepted delivery claim on a processing order.
type AttachClaimInput struct {
	OrderID uuid.UUID
	ClaimID string
	Actor   ActorInput
}

// CancelInput cancels an order locally. Callers that hold a delivery claim
// must clear it with the provider first; this operation only touches local
// state.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   ActorInput
}

// CancelFromStatusInput is the reconciliation-job variant of CancelInput: the
// cancellation only proceeds while the order still sits in Expected.
type CancelFromStatusInput struct {
	OrderID  uuid.UUID
	Expected enums.OrderStatus
	Reason   string
	Actor    ActorInput
}

// ResolveDeliveryOutcomeInput maps a terminal provider claim status onto the
// local order outcome.
type ResolveDeliveryOutcomeInput struct {
	OrderID     uuid.UUID
	ClaimStatus enums.ClaimStatus
	Reason      string
	Actor       ActorInput
}
