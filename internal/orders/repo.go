package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	"github.com/angelmondragon/kiosko-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListItemDetails(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error) {
	var items []OrderItemDetail
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.stock_position_id, sp.title, oi.quantity, oi.unit_price_cents").
		Joins("JOIN stock_positions sp ON sp.id = oi.stock_position_id").
		Where("oi.order_id = ?", orderID).
		Order("sp.title ASC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].TotalCents = int64(items[i].Quantity) * items[i].UnitPriceCents
	}
	return items, nil
}

// UpdateStatus applies a guarded transition. The WHERE status = from clause
// makes concurrent transition attempts mutually exclusive; callers treat a
// false return as a conflict, not success.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AttachClaim records the accepted claim and moves the order to transferring
// in one statement. The claim-id-null guard keeps a duplicate accept from
// overwriting an earlier claim.
func (r *repository) AttachClaim(ctx context.Context, orderID uuid.UUID, claimID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND delivery_claim_id IS NULL", orderID, enums.OrderStatusProcessing).
		Updates(map[string]any{
			"delivery_claim_id": claimID,
			"status":            enums.OrderStatusTransferring,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, listQuery ListQuery) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(listQuery.Limit)
	normalized := pagination.NormalizeLimit(listQuery.Limit)

	filters := listQuery.Filters
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filters.BuyerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.FulfillmentMethod != nil {
		query = query.Where("fulfillment_method = ?", *filters.FulfillmentMethod)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	if listQuery.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", listQuery.Cursor.CreatedAt, listQuery.Cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	if len(orders) > normalized {
		next := orders[normalized]
		orders = orders[:normalized]
		return orders, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return orders, nil, nil
}

func (r *repository) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindActiveWithClaim(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND delivery_claim_id IS NOT NULL", enums.ActiveOrderStatuses).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND fulfillment_method = ? AND delivery_claim_id IS NULL AND paid_at < ?",
			enums.OrderStatusProcessing, enums.FulfillmentDelivery, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
