package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// Operator is a staff account. This table is the access-control source of
// truth; there is no side-channel allow-list.
type Operator struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Login        string             `gorm:"column:login;not null;uniqueIndex"`
	PasswordHash string             `gorm:"column:password_hash;not null"`
	DisplayName  string             `gorm:"column:display_name;not null"`
	Role         enums.OperatorRole `gorm:"column:role;type:operator_role;not null;default:'operator'"`
	Scopes       pq.StringArray     `gorm:"column:scopes;type:text[]"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
