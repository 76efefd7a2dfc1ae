package buyers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains buyer profiles pushed in from the storefront bot.
type Service interface {
	// Upsert creates or refreshes the buyer identified by externalRef and
	// provisions a loyalty account on first touch.
	Upsert(ctx context.Context, externalRef string, input UpsertInput) (*models.Buyer, error)
	FindByID(ctx context.Context, buyerID uuid.UUID) (*models.Buyer, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Buyer, error)
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
}

// Deps bundles the buyers service dependencies.
type Deps struct {
	Tx     txRunner
	Repo   Repository
	Logger *logger.Logger
}

// NewService wires the buyers service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("buyers repository required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: deps.Tx, repo: deps.Repo, logg: deps.Logger}, nil
}

func (s *service) Upsert(ctx context.Context, externalRef string, input UpsertInput) (*models.Buyer, error) {
	if externalRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external ref required")
	}
	if input.DisplayName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}
	if input.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone required")
	}

	var buyer *models.Buyer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByExternalRef(ctx, externalRef)
		switch {
		case err == gorm.ErrRecordNotFound:
			buyer = &models.Buyer{
				ID:          uuid.New(),
				ExternalRef: externalRef,
				DisplayName: input.DisplayName,
				Phone:       input.Phone,
				Address:     input.Address,
				Porch:       input.Porch,
				Floor:       input.Floor,
				Apartment:   input.Apartment,
			}
			if err := repo.Create(ctx, buyer); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create buyer")
			}
			s.logg.Info(s.logg.WithBuyerID(ctx, buyer.ID.String()), "buyer profile created")
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		default:
			existing.DisplayName = input.DisplayName
			existing.Phone = input.Phone
			existing.Address = input.Address
			existing.Porch = input.Porch
			existing.Floor = input.Floor
			existing.Apartment = input.Apartment
			if err := repo.Update(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update buyer")
			}
			buyer = existing
		}

		if err := repo.EnsureLoyaltyAccount(ctx, buyer.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision loyalty account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buyer, nil
}

func (s *service) FindByID(ctx context.Context, buyerID uuid.UUID) (*models.Buyer, error) {
	buyer, err := s.repo.FindByID(ctx, buyerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	return buyer, nil
}

func (s *service) FindByExternalRef(ctx context.Context, externalRef string) (*models.Buyer, error) {
	buyer, err := s.repo.FindByExternalRef(ctx, externalRef)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	return buyer, nil
}
