package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// Order is a placed buyer order. Status moves only through the transition
// table guards; rows are never deleted (cancellation is a terminal status).
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status            enums.OrderStatus       `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	FulfillmentMethod enums.FulfillmentMethod `gorm:"column:fulfillment_method;type:fulfillment_method;not null"`

	DeliveryAddress   *string `gorm:"column:delivery_address"`
	DeliveryPorch     *string `gorm:"column:delivery_porch"`
	DeliveryFloor     *string `gorm:"column:delivery_floor"`
	DeliveryApartment *string `gorm:"column:delivery_apartment"`

	UsedPoints        int64 `gorm:"column:used_points;not null;default:0"`
	GoodsTotalCents   int64 `gorm:"column:goods_total_cents;not null"`
	DeliveryCostCents int64 `gorm:"column:delivery_cost_cents;not null;default:0"`

	// DeliveryClaimID is set only after the provider accepted the claim.
	// A processing delivery order without it is the stuck state the
	// cleanup job targets.
	DeliveryClaimID *string `gorm:"column:delivery_claim_id;index"`

	PaymentMetadata json.RawMessage `gorm:"column:payment_metadata;type:jsonb"`

	CancelReason *string    `gorm:"column:cancel_reason"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`

	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt     *time.Time `gorm:"column:paid_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// AmountDueCents is what the payment provider must still collect.
func (o Order) AmountDueCents() int64 {
	due := o.GoodsTotalCents + o.DeliveryCostCents - o.UsedPoints
	if due < 0 {
		return 0
	}
	return due
}
