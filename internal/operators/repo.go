package operators

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
)

// Repository exposes operator account persistence.
type Repository interface {
	Create(ctx context.Context, operator *models.Operator) error
	FindByLogin(ctx context.Context, login string) (*models.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an operators repository bound to the provided database.
func NewRepository(gormDB *gorm.DB) Repository {
	return &repository{db: gormDB}
}

func (r *repository) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *repository) FindByLogin(ctx context.Context, login string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).
		Where("login = ?", login).
		First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.WithContext(ctx).First(&operator, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Count(&count).Error
	return count, err
}
