package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kiosko-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LedgerReleaser returns reserved stock and points when an order is cancelled.
type LedgerReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) error
}

// Service owns every order status write. Checkout inserts rows through the
// Repository inside its own transaction; everything after creation goes
// through these operations so the transition table stays authoritative.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDetail, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	AdvanceStatus(ctx context.Context, input AdvanceStatusInput) error
	MarkPaid(ctx context.Context, input MarkPaidInput) error
	AttachClaim(ctx context.Context, input AttachClaimInput) error
	Cancel(ctx context.Context, input CancelInput) error
	CancelFromStatus(ctx context.Context, input CancelFromStatusInput) error
	ResolveDeliveryOutcome(ctx context.Context, input ResolveDeliveryOutcomeInput) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	ledger LedgerReleaser
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledger LedgerReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger releaser required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		ledger: ledger,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	items, err := s.repo.ListItemDetails(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return buildDetail(order, items), nil
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDetail, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	detail, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if detail.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return detail, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	query := ListQuery{Filters: input.Filters, Limit: input.Limit}
	if input.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	summaries := make([]OrderSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, buildSummary(&rows[i]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &OrderList{Orders: summaries, NextCursor: cursor}, nil
}

func (s *service) AdvanceStatus(ctx context.Context, input AdvanceStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.To.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == input.To {
			return nil
		}
		if !order.Status.CanTransitionTo(input.To) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.To))
		}

		now := time.Now().UTC()
		updates := map[string]any{}
		if input.To == enums.OrderStatusProcessing {
			updates["paid_at"] = now
		}
		if input.To == enums.OrderStatusFinished {
			updates["finished_at"] = now
		}

		updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.To, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		if input.To == enums.OrderStatusFinished {
			return s.emitFinished(ctx, tx, order, now, input.Actor)
		}
		return nil
	})
}

func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		// A duplicate confirmation for an already-settled order is expected
		// from the provider and must not double-apply.
		if order.Status != enums.OrderStatusPendingPayment {
			if order.Status == enums.OrderStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order already cancelled")
			}
			if order.PaidAt != nil {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot settle order in status %s", order.Status))
		}

		paidAt := input.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		updated, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusProcessing,
			map[string]any{"paid_at": paidAt})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle order")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				AmountCents: input.AmountCents,
				ProviderRef: input.ProviderRef,
				PaidAt:      paidAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) AttachClaim(ctx context.Context, input AttachClaimInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ClaimID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "claim id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.DeliveryClaimID != nil && *order.DeliveryClaimID == input.ClaimID {
			return nil
		}

		attached, err := repo.AttachClaim(ctx, order.ID, input.ClaimID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach delivery claim")
		}
		if !attached {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot accept a delivery claim in current state")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventClaimAccepted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.Actor),
			Data: payloads.ClaimAcceptedEvent{
				OrderID: order.ID,
				BuyerID: order.BuyerID,
				ClaimID: input.ClaimID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
		}

		return s.cancelLocked(ctx, tx, repo, order, input.Reason, input.Actor)
	})
}

// CancelFromStatus cancels only while the order still sits in the expected
// status. The reconciliation jobs read a batch and cancel one by one; any
// order that moved on in between reports a state conflict and keeps its new
// state.
func (s *service) CancelFromStatus(ctx context.Context, input CancelFromStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Expected.IsCancellable() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("status %s cannot start a cancellation", input.Expected))
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if order.Status != input.Expected {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order moved to %s before cancellation", order.Status))
		}

		return s.cancelLocked(ctx, tx, repo, order, input.Reason, input.Actor)
	})
}

func (s *service) ResolveDeliveryOutcome(ctx context.Context, input ResolveDeliveryOutcomeInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	outcome, terminal := input.ClaimStatus.TerminalOrderStatus()
	if !terminal {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return nil
		}

		// The provider already ended the claim, so its verdict overrides the
		// local table here; the guarded update still serializes against any
		// concurrent local transition.
		if outcome == enums.OrderStatusFinished {
			now := time.Now().UTC()
			updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusFinished,
				map[string]any{"finished_at": now})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finish delivered order")
			}
			if !updated {
				return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
			}
			return s.emitFinished(ctx, tx, order, now, input.Actor)
		}

		reason := input.Reason
		if reason == "" {
			reason = fmt.Sprintf("delivery claim ended as %s", input.ClaimStatus)
		}
		return s.cancelLocked(ctx, tx, repo, order, reason, input.Actor)
	})
}

// cancelLocked releases the ledger and flips the row to cancelled. The caller
// holds the row lock and has already ruled the cancellation legal.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, reason string, actor ActorInput) error {
	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	if err := s.ledger.Release(ctx, tx, order, items); err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]any{"cancelled_at": now}
	if reason != "" {
		updates["cancel_reason"] = reason
	}
	updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         buildActor(actor),
		Data: payloads.OrderCancelledEvent{
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			PreviousStatus: order.Status,
			Reason:         reason,
			CancelledAt:    now,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) emitFinished(ctx context.Context, tx *gorm.DB, order *models.Order, finishedAt time.Time, actor ActorInput) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderFinished,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         buildActor(actor),
		Data: payloads.OrderFinishedEvent{
			OrderID:           order.ID,
			BuyerID:           order.BuyerID,
			FulfillmentMethod: order.FulfillmentMethod,
			GoodsTotalCents:   order.GoodsTotalCents,
			DeliveryCostCents: order.DeliveryCostCents,
			UsedPoints:        order.UsedPoints,
			FinishedAt:        finishedAt,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func buildSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:                order.ID,
		BuyerID:           order.BuyerID,
		Status:            order.Status,
		FulfillmentMethod: order.FulfillmentMethod,
		GoodsTotalCents:   order.GoodsTotalCents,
		DeliveryCostCents: order.DeliveryCostCents,
		UsedPoints:        order.UsedPoints,
		AmountDueCents:    order.AmountDueCents(),
		CreatedAt:         order.CreatedAt,
	}
}

func buildDetail(order *models.Order, items []OrderItemDetail) *OrderDetail {
	return &OrderDetail{
		OrderSummary:      buildSummary(order),
		DeliveryAddress:   order.DeliveryAddress,
		DeliveryPorch:     order.DeliveryPorch,
		DeliveryFloor:     order.DeliveryFloor,
		DeliveryApartment: order.DeliveryApartment,
		DeliveryClaimID:   order.DeliveryClaimID,
		CancelReason:      order.CancelReason,
		CancelledAt:       order.CancelledAt,
		PaidAt:            order.PaidAt,
		FinishedAt:        order.FinishedAt,
		Items:             items,
	}
}

func buildActor(input ActorInput) *outbox.ActorRef {
	if input.BuyerID == nil && input.OperatorID == nil && input.Role == "" {
		return nil
	}
	return &outbox.ActorRef{
		BuyerID:    input.BuyerID,
		OperatorID: input.OperatorID,
		Role:       input.Role,
	}
}
