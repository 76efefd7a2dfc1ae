package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// Payment is one provider invoice attached to an order. ProviderRef is the
// key the confirmation webhook resolves back to the order.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProviderRef string              `gorm:"column:provider_ref;not null;uniqueIndex"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Payload     json.RawMessage     `gorm:"column:payload;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	ConfirmedAt *time.Time          `gorm:"column:confirmed_at"`
}
