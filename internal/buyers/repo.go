package buyers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
)

// Repository exposes buyer persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, buyer *models.Buyer) error
	Update(ctx context.Context, buyer *models.Buyer) error
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Buyer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
	EnsureLoyaltyAccount(ctx context.Context, buyerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a buyers repository bound to the provided database.
func NewRepository(gormDB *gorm.DB) Repository {
	return &repository{db: gormDB}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, buyer *models.Buyer) error {
	return r.db.WithContext(ctx).Create(buyer).Error
}

func (r *repository) Update(ctx context.Context, buyer *models.Buyer) error {
	return r.db.WithContext(ctx).Save(buyer).Error
}

func (r *repository) FindByExternalRef(ctx context.Context, externalRef string) (*models.Buyer, error) {
	var buyer models.Buyer
	err := r.db.WithContext(ctx).
		Where("external_ref = ?", externalRef).
		First(&buyer).Error
	if err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	var buyer models.Buyer
	err := r.db.WithContext(ctx).
		Preload("LoyaltyAccount").
		First(&buyer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &buyer, nil
}

// EnsureLoyaltyAccount provisions a zero-balance account on first touch.
// Existing balances are never overwritten.
func (r *repository) EnsureLoyaltyAccount(ctx context.Context, buyerID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		First(&models.LoyaltyAccount{}, "buyer_id = ?", buyerID).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(&models.LoyaltyAccount{BuyerID: buyerID}).Error
}
