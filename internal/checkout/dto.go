package checkout

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// ItemInput is one requested cart line.
type ItemInput struct {
	PositionID uuid.UUID
	Quantity   int
}

// PlaceOrderInput carries everything checkout needs to place an order.
// Address fields apply to delivery orders only; when empty they fall back to
// the buyer's profile defaults.
type PlaceOrderInput struct {
	BuyerID           uuid.UUID
	Items             []ItemInput
	FulfillmentMethod enums.FulfillmentMethod
	Address           *string
	Porch             *string
	Floor             *string
	Apartment         *string
	RequestedPoints   int64
	DeliveryCostCents int64
}

// RejectionReason names a policy outcome that stops an order without being
// an error.
type RejectionReason string

const (
	// ReasonAmountBelowMinimum fires when the amount due is positive but
	// under the provider's minimum chargeable amount.
	ReasonAmountBelowMinimum RejectionReason = "amount_below_minimum"
)

// Rejection reports a policy refusal. The order was created and immediately
// cancelled with its reservation released.
type Rejection struct {
	Reason          RejectionReason `json:"reason"`
	MinPayableCents int64           `json:"min_payable_cents"`
}

// PlaceOrderResult is the checkout outcome. Exactly one of InvoiceURL and
// Rejection is set for paid orders; points-only orders carry neither and the
// order is already in processing.
type PlaceOrderResult struct {
	Order          *models.Order
	AmountDueCents int64
	InvoiceURL     string
	Rejection      *Rejection
}

// ConfirmPaymentInput settles an order by its provider reference. Payload is
// the raw provider notification stored on the payment row for audit.
type ConfirmPaymentInput struct {
	ProviderRef string
	AmountCents int64
	PaidAt      time.Time
	Payload     json.RawMessage
}
