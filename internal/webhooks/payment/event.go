package paymentwebhook

import (
	"encoding/json"
	"time"
)

// WebhookEvent is the provider notification envelope.
type WebhookEvent struct {
	MerchantID string    `json:"merchant_id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
	Data       EventData `json:"data"`
}

// EventData wraps the notification object.
type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

// EventObject carries the payment snapshot plus the raw form we persist on
// the payment row.
type EventObject struct {
	Payment PaymentSnapshot `json:"payment"`
}

// PaymentSnapshot is the subset of the provider payment we act on. OrderID is
// the provider-side order reference the payment link was created with.
type PaymentSnapshot struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountMoney Money  `json:"amount_money"`
	UpdatedAt   string `json:"updated_at"`
}

// Money is an amount in the currency's smallest unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

const (
	// EventTypePaymentUpdated is the only event type this service acts on.
	EventTypePaymentUpdated = "payment.updated"

	// paymentStatusCompleted is the provider's settled status.
	paymentStatusCompleted = "COMPLETED"
)

// RawPayload returns the event re-encoded for storage on the payment row.
func (e *WebhookEvent) RawPayload() json.RawMessage {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return raw
}
