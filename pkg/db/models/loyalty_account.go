package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount holds a buyer's point balance. One point offsets one minor
// currency unit of goods total. Mutated only inside ledger transactions.
type LoyaltyAccount struct {
	BuyerID      uuid.UUID `gorm:"column:buyer_id;type:uuid;primaryKey"`
	PointBalance int64     `gorm:"column:point_balance;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
