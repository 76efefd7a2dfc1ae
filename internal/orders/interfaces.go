package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	"github.com/angelmondragon/kiosko-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
// Status columns are only ever written through UpdateStatus and AttachClaim
// so every transition carries its optimistic guard.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListItemDetails(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	AttachClaim(ctx context.Context, orderID uuid.UUID, claimID string) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error)
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	FindActiveWithClaim(ctx context.Context) ([]models.Order, error)
	FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}
