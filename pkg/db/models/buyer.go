package models

import (
	"time"

	"github.com/google/uuid"
)

// Buyer is the contact profile the UI gateway registers before checkout.
// The address fields are the delivery defaults and the claim contact data.
type Buyer struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalRef string    `gorm:"column:external_ref;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Phone       string    `gorm:"column:phone;not null"`
	Address     *string   `gorm:"column:address"`
	Porch       *string   `gorm:"column:porch"`
	Floor       *string   `gorm:"column:floor"`
	Apartment   *string   `gorm:"column:apartment"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	LoyaltyAccount *LoyaltyAccount `gorm:"foreignKey:BuyerID"`
}
