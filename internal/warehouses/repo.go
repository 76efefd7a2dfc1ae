package warehouses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
)

// Repository exposes warehouse reads. Warehouses are seeded by migration and
// managed out of band, so there is no write path here.
type Repository interface {
	// FindDefault returns the active default warehouse used as the claim
	// origin for delivery orders.
	FindDefault(ctx context.Context) (*models.Warehouse, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	ListActive(ctx context.Context) ([]models.Warehouse, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a warehouses repository bound to the provided database.
func NewRepository(gormDB *gorm.DB) Repository {
	return &repository{db: gormDB}
}

func (r *repository) FindDefault(ctx context.Context) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		First(&warehouse).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	if err := r.db.WithContext(ctx).First(&warehouse, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&warehouses).Error
	if err != nil {
		return nil, err
	}
	return warehouses, nil
}
