package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// Repository owns row access for stock positions, loyalty accounts, and the
// append-only ledger event audit. All mutating calls expect to run inside a
// transaction the caller opened.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// LockPositions loads the requested positions in ascending id order and
	// takes row locks on them. The stable order keeps concurrent checkouts
	// that overlap on positions from deadlocking.
	LockPositions(ctx context.Context, ids []uuid.UUID) ([]models.StockPosition, error)
	AdjustPositionQuantity(ctx context.Context, id uuid.UUID, delta int) error
	// LockLoyaltyAccount locks the buyer's account row, creating a zero
	// balance row on first touch. Always called after position locks.
	LockLoyaltyAccount(ctx context.Context, buyerID uuid.UUID) (*models.LoyaltyAccount, error)
	AdjustPointBalance(ctx context.Context, buyerID uuid.UUID, delta int64) error
	CreateEvent(ctx context.Context, event *models.LedgerEvent) error
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(gormDB *gorm.DB) Repository {
	return &repository{db: gormDB}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockPositions(ctx context.Context, ids []uuid.UUID) ([]models.StockPosition, error) {
	var positions []models.StockPosition
	if len(ids) == 0 {
		return positions, nil
	}
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *repository) AdjustPositionQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockPosition{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

func (r *repository) LockLoyaltyAccount(ctx context.Context, buyerID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("buyer_id = ?", buyerID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	account = models.LoyaltyAccount{BuyerID: buyerID, PointBalance: 0}
	if err := r.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) AdjustPointBalance(ctx context.Context, buyerID uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.LoyaltyAccount{}).
		Where("buyer_id = ?", buyerID).
		Update("point_balance", gorm.Expr("point_balance + ?", delta)).Error
}

func (r *repository) CreateEvent(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where("order_id = ? AND event_type = ?", orderID, eventType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
