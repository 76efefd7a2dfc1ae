package fulfillment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
)

// CancelOrderInput asks for a buyer- or operator-initiated cancellation.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   orders.ActorInput
}

// DeliveryDetails is the live courier view for a transferring order. Fields
// the provider has not published yet, or that failed to load, are nil/empty.
type DeliveryDetails struct {
	ETA         *time.Time               `json:"eta,omitempty"`
	TrackingURL string                   `json:"tracking_url,omitempty"`
	Courier     *delivery.CourierContact `json:"courier,omitempty"`
}
