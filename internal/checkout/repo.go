package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// Repository persists provider invoices attached to orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error)
	MarkSucceeded(ctx context.Context, paymentID uuid.UUID, confirmedAt time.Time, payload json.RawMessage) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) MarkSucceeded(ctx context.Context, paymentID uuid.UUID, confirmedAt time.Time, payload json.RawMessage) error {
	updates := map[string]any{
		"status":       enums.PaymentStatusSucceeded,
		"confirmed_at": confirmedAt,
	}
	if len(payload) > 0 {
		updates["payload"] = payload
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}
