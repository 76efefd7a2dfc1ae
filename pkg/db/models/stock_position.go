package models

import (
	"time"

	"github.com/google/uuid"
)

// StockPosition is a sellable catalog position with a finite quantity.
// Quantity is mutated only inside ledger transactions and never goes
// negative; the physical attributes feed delivery claim quoting.
type StockPosition struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title      string    `gorm:"column:title;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	Quantity   int       `gorm:"column:quantity;not null;default:0"`

	WeightGrams int `gorm:"column:weight_grams;not null;default:0"`
	LengthMM    int `gorm:"column:length_mm;not null;default:0"`
	WidthMM     int `gorm:"column:width_mm;not null;default:0"`
	HeightMM    int `gorm:"column:height_mm;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
