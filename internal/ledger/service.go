package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
)

// Service moves stock and loyalty points atomically and keeps the ledger
// event audit trail. Reserve and Release always run inside a transaction the
// caller owns, alongside the order row changes they belong to.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*Reservation, error)
	RecordReserved(ctx context.Context, tx *gorm.DB, order *models.Order) error
	Release(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) error
	History(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// ItemRequest names a stock position and the quantity the buyer wants.
type ItemRequest struct {
	PositionID uuid.UUID
	Quantity   int
}

// ReserveInput carries everything Reserve needs to price and hold an order.
type ReserveInput struct {
	BuyerID         uuid.UUID
	Items           []ItemRequest
	RequestedPoints int64
}

// ReservedLine is one priced line of a successful reservation. Position holds
// the row as it looked under lock, before the quantity decrement.
type ReservedLine struct {
	Position models.StockPosition
	Quantity int
}

// Reservation reports what Reserve actually held. AppliedPoints may be lower
// than requested after clamping.
type Reservation struct {
	GoodsTotalCents int64
	AppliedPoints   int64
	Lines           []ReservedLine
}

// StockShortfall describes one position that could not cover the requested
// quantity. Returned inside validation error details so the client sees every
// problem line at once.
type StockShortfall struct {
	PositionID uuid.UUID `json:"position_id"`
	Title      string    `json:"title"`
	Requested  int       `json:"requested"`
	Available  int       `json:"available"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Reserve validates availability, decrements stock, and debits loyalty points
// inside the caller's transaction. Position rows are locked in ascending id
// order, then the loyalty account. Validation failures report every missing
// position or shortfall, not just the first.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*Reservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for reserve")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	quantities := make(map[uuid.UUID]int, len(input.Items))
	for _, item := range input.Items {
		if item.PositionID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item position id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"position_id": item.PositionID})
		}
		quantities[item.PositionID] += item.Quantity
	}

	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}

	repo := s.repo.WithTx(tx)
	positions, err := repo.LockPositions(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock positions")
	}

	if len(positions) != len(ids) {
		found := make(map[uuid.UUID]struct{}, len(positions))
		for _, p := range positions {
			found[p.ID] = struct{}{}
		}
		missing := make([]string, 0, len(ids)-len(positions))
		for id := range quantities {
			if _, ok := found[id]; !ok {
				missing = append(missing, id.String())
			}
		}
		sort.Strings(missing)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown stock positions").
			WithDetails(map[string]any{"missing_position_ids": missing})
	}

	var shortfalls []StockShortfall
	for _, pos := range positions {
		want := quantities[pos.ID]
		if want > pos.Quantity {
			shortfalls = append(shortfalls, StockShortfall{
				PositionID: pos.ID,
				Title:      pos.Title,
				Requested:  want,
				Available:  pos.Quantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
			WithDetails(map[string]any{"shortfalls": shortfalls})
	}

	var goodsTotal int64
	lines := make([]ReservedLine, 0, len(positions))
	for _, pos := range positions {
		want := quantities[pos.ID]
		goodsTotal += pos.PriceCents * int64(want)
		lines = append(lines, ReservedLine{Position: pos, Quantity: want})
	}

	account, err := repo.LockLoyaltyAccount(ctx, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock loyalty account")
	}

	// Points never offset the delivery fee, so the cap is the goods total.
	applied := input.RequestedPoints
	if applied < 0 {
		applied = 0
	}
	if applied > account.PointBalance {
		applied = account.PointBalance
	}
	if applied > goodsTotal {
		applied = goodsTotal
	}

	for _, line := range lines {
		if err := repo.AdjustPositionQuantity(ctx, line.Position.ID, -line.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock position")
		}
	}
	if applied > 0 {
		if err := repo.AdjustPointBalance(ctx, input.BuyerID, -applied); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit loyalty points")
		}
	}

	return &Reservation{
		GoodsTotalCents: goodsTotal,
		AppliedPoints:   applied,
		Lines:           lines,
	}, nil
}

// RecordReserved appends the reserve audit event for an order created from a
// reservation. Called after the order row exists so the event can reference
// it. A second call for the same order trips the unique (order_id, event_type)
// index.
func (s *service) RecordReserved(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for reserve event")
	}
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	event := &models.LedgerEvent{
		ID:          uuid.New(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		EventType:   enums.LedgerEventTypeReserve,
		PointsDelta: -order.UsedPoints,
	}
	if err := s.repo.WithTx(tx).CreateEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reserve event")
	}
	return nil
}

// Release restores the stock and loyalty points an order reserved. It is a
// no-op when a release event already exists, so retried cancellations cannot
// double-credit.
func (s *service) Release(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for release")
	}
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	repo := s.repo.WithTx(tx)
	released, err := repo.HasEvent(ctx, order.ID, enums.LedgerEventTypeRelease)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check release event")
	}
	if released {
		return nil
	}

	quantities := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		quantities[item.StockPositionID] += item.Quantity
	}

	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}

	positions, err := repo.LockPositions(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock positions")
	}
	if len(positions) != len(ids) {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock position missing during release")
	}

	for _, pos := range positions {
		if err := repo.AdjustPositionQuantity(ctx, pos.ID, quantities[pos.ID]); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock position")
		}
	}

	if order.UsedPoints > 0 {
		if _, err := repo.LockLoyaltyAccount(ctx, order.BuyerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock loyalty account")
		}
		if err := repo.AdjustPointBalance(ctx, order.BuyerID, order.UsedPoints); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit loyalty points")
		}
	}

	event := &models.LedgerEvent{
		ID:          uuid.New(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		EventType:   enums.LedgerEventTypeRelease,
		PointsDelta: order.UsedPoints,
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record release event")
	}
	return nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	events, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
	}
	return events, nil
}
