package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a pickup/claim-origin location. The default active warehouse
// supplies the source route point and emergency contact for delivery claims.
type Warehouse struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Address      string    `gorm:"column:address;not null"`
	Lat          float64   `gorm:"column:lat;not null"`
	Lon          float64   `gorm:"column:lon;not null"`
	ContactName  string    `gorm:"column:contact_name;not null"`
	ContactPhone string    `gorm:"column:contact_phone;not null"`
	Porch        *string   `gorm:"column:porch"`
	Floor        *string   `gorm:"column:floor"`
	Apartment    *string   `gorm:"column:apartment"`
	Comment      *string   `gorm:"column:comment"`
	IsDefault    bool      `gorm:"column:is_default;not null;default:false"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
