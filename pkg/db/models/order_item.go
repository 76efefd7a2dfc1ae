package models

import (
	"github.com/google/uuid"
)

// OrderItem snapshots one reserved position. The unit price is captured at
// creation so later catalog price changes never move historical totals.
// Rows are written once with the order and never edited.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	StockPositionID uuid.UUID `gorm:"column:stock_position_id;type:uuid;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	UnitPriceCents  int64     `gorm:"column:unit_price_cents;not null"`
}
