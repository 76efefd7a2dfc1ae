package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
)

// Repository reads the catalog rows claim building needs.
type Repository interface {
	FindPositions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.StockPosition, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindPositions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.StockPosition, error) {
	var rows []models.StockPosition
	if len(ids) == 0 {
		return map[uuid.UUID]models.StockPosition{}, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.StockPosition, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}
