package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// LedgerEvent is the append-only audit row written in the same transaction
// as every stock/points mutation. One reserve and at most one release exist
// per order.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_ledger_events_order_event"`
	BuyerID     uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	EventType   enums.LedgerEventType `gorm:"column:event_type;type:ledger_event_type;not null;uniqueIndex:idx_ledger_events_order_event"`
	PointsDelta int64                 `gorm:"column:points_delta;not null;default:0"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
