package orders

import (
	"context"
	"testing"
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

type stubOrdersRepo struct {
	order       *models.Order
	items       []models.OrderItem
	itemDetails []OrderItemDetail
	listRows    []models.Order
	listNext    *pagination.Cursor
	listQuery   *ListQuery

	updateFrom    enums.OrderStatus
	updateTo      enums.OrderStatus
	updates       map[string]any
	updateCalls   int
	updateOutcome *bool

	attachedClaim string
	attachOutcome *bool
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, orderID)
}

func (s *stubOrdersRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return s.items, nil
}

func (s *stubOrdersRepo) ListItemDetails(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error) {
	return s.itemDetails, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	s.updateCalls++
	s.updateFrom = from
	s.updateTo = to
	s.updates = updates
	if s.updateOutcome != nil {
		return *s.updateOutcome, nil
	}
	return true, nil
}

func (s *stubOrdersRepo) AttachClaim(ctx context.Context, orderID uuid.UUID, claimID string) (bool, error) {
	s.attachedClaim = claimID
	if s.attachOutcome != nil {
		return *s.attachOutcome, nil
	}
	return true, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error) {
	s.listQuery = &query
	return s.listRows, s.listNext, nil
}

func (s *stubOrdersRepo) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindActiveWithClaim(ctx context.Context) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	panic("not implemented")
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type releaseCall struct {
	orderID   uuid.UUID
	itemCount int
}

type stubLedgerReleaser struct {
	calls []releaseCall
	err   error
}

func (s *stubLedgerReleaser) Release(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, releaseCall{orderID: order.ID, itemCount: len(items)})
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubOrdersRepo, pub *stubOutboxPublisher, ledger *stubLedgerReleaser) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, pub, ledger)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func pendingOrder(buyerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		BuyerID:           buyerID,
		Status:            enums.OrderStatusPendingPayment,
		FulfillmentMethod: enums.FulfillmentPickup,
		GoodsTotalCents:   3000,
	}
}

func TestAdvanceStatusToFinishedEmitsEvent(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusReady
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	operatorID := uuid.New()
	err := svc.AdvanceStatus(context.Background(), AdvanceStatusInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFinished,
		Actor:   ActorInput{OperatorID: &operatorID, Role: "operator"},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updateTo != enums.OrderStatusFinished || repo.updateFrom != enums.OrderStatusReady {
		t.Fatalf("unexpected transition %s -> %s", repo.updateFrom, repo.updateTo)
	}
	if _, ok := repo.updates["finished_at"]; !ok {
		t.Fatal("expected finished_at timestamp")
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderFinished {
		t.Fatalf("expected order_finished event got %+v", pub.events)
	}
}

func TestAdvanceStatusRejectsIllegalTransition(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.AdvanceStatus(context.Background(), AdvanceStatusInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFinished,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if repo.updateCalls != 0 {
		t.Fatal("status must not be written on an illegal transition")
	}
	if len(pub.events) != 0 {
		t.Fatal("unexpected outbox event")
	}
}

func TestAdvanceStatusIdempotentOnSameStatus(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.AdvanceStatus(context.Background(), AdvanceStatusInput{
		OrderID: order.ID,
		To:      enums.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if repo.updateCalls != 0 {
		t.Fatal("unexpected status write")
	}
}

func TestAdvanceStatusGuardMissReturnsConflict(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusProcessing
	missed := false
	repo := &stubOrdersRepo{order: order, updateOutcome: &missed}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedgerReleaser{})

	err := svc.AdvanceStatus(context.Background(), AdvanceStatusInput{
		OrderID: order.ID,
		To:      enums.OrderStatusReady,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestMarkPaidSettlesPendingOrder(t *testing.T) {
	buyerID := uuid.New()
	order := pendingOrder(buyerID)
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	paidAt := time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC)
	err := svc.MarkPaid(context.Background(), MarkPaidInput{
		OrderID:     order.ID,
		AmountCents: 3000,
		ProviderRef: "inv-42",
		PaidAt:      paidAt,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updateFrom != enums.OrderStatusPendingPayment || repo.updateTo != enums.OrderStatusProcessing {
		t.Fatalf("unexpected transition %s -> %s", repo.updateFrom, repo.updateTo)
	}
	if repo.updates["paid_at"] != paidAt {
		t.Fatalf("unexpected paid_at %v", repo.updates["paid_at"])
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderPaid {
		t.Fatalf("expected order_paid event got %+v", pub.events)
	}
	payload, ok := pub.events[0].Data.(payloads.OrderPaidEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.events[0].Data)
	}
	if payload.AmountCents != 3000 || payload.ProviderRef != "inv-42" || payload.BuyerID != buyerID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestMarkPaidDuplicateConfirmationIsNoOp(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusProcessing
	paidAt := time.Now().UTC()
	order.PaidAt = &paidAt
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.MarkPaid(context.Background(), MarkPaidInput{OrderID: order.ID, AmountCents: 3000})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if repo.updateCalls != 0 || len(pub.events) != 0 {
		t.Fatal("duplicate confirmation must not mutate or emit")
	}
}

func TestMarkPaidCancelledOrderConflicts(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusCancelled
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedgerReleaser{})

	err := svc.MarkPaid(context.Background(), MarkPaidInput{OrderID: order.ID, AmountCents: 3000})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestAttachClaimMovesOrderToTransferring(t *testing.T) {
	buyerID := uuid.New()
	order := pendingOrder(buyerID)
	order.Status = enums.OrderStatusProcessing
	order.FulfillmentMethod = enums.FulfillmentDelivery
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.AttachClaim(context.Background(), AttachClaimInput{OrderID: order.ID, ClaimID: "claim-55"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.attachedClaim != "claim-55" {
		t.Fatalf("unexpected claim %q", repo.attachedClaim)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventClaimAccepted {
		t.Fatalf("expected claim_accepted event got %+v", pub.events)
	}
}

func TestAttachClaimIdempotentForSameClaim(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusTransferring
	claimID := "claim-55"
	order.DeliveryClaimID = &claimID
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.AttachClaim(context.Background(), AttachClaimInput{OrderID: order.ID, ClaimID: claimID})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if repo.attachedClaim != "" || len(pub.events) != 0 {
		t.Fatal("duplicate accept must not mutate or emit")
	}
}

func TestAttachClaimRejectedOutsideProcessing(t *testing.T) {
	order := pendingOrder(uuid.New())
	refused := false
	repo := &stubOrdersRepo{order: order, attachOutcome: &refused}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedgerReleaser{})

	err := svc.AttachClaim(context.Background(), AttachClaimInput{OrderID: order.ID, ClaimID: "claim-1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestCancelReleasesLedgerAndEmits(t *testing.T) {
	buyerID := uuid.New()
	order := pendingOrder(buyerID)
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{
		order: order,
		items: []models.OrderItem{{ID: uuid.New(), OrderID: order.ID, Quantity: 2}},
	}
	pub := &stubOutboxPublisher{}
	ledger := &stubLedgerReleaser{}
	svc := newTestService(t, repo, pub, ledger)

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "buyer changed their mind",
		Actor:   ActorInput{BuyerID: &buyerID, Role: "buyer"},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(ledger.calls) != 1 || ledger.calls[0].itemCount != 1 {
		t.Fatalf("expected one release call got %+v", ledger.calls)
	}
	if repo.updateTo != enums.OrderStatusCancelled {
		t.Fatalf("unexpected target status %s", repo.updateTo)
	}
	if repo.updates["cancel_reason"] != "buyer changed their mind" {
		t.Fatalf("unexpected updates %+v", repo.updates)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("expected order_cancelled event got %+v", pub.events)
	}
	payload := pub.events[0].Data.(payloads.OrderCancelledEvent)
	if payload.PreviousStatus != enums.OrderStatusProcessing {
		t.Fatalf("unexpected previous status %s", payload.PreviousStatus)
	}
}

func TestCancelIdempotentOnCancelledOrder(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusCancelled
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	ledger := &stubLedgerReleaser{}
	svc := newTestService(t, repo, pub, ledger)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if len(ledger.calls) != 0 || repo.updateCalls != 0 || len(pub.events) != 0 {
		t.Fatal("second cancel must not release or emit again")
	}
}

func TestCancelRejectedWhileTransferring(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusTransferring
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedgerReleaser{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatal("ledger must stay untouched")
	}
}

func TestResolveDeliveryOutcomeDelivered(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusTransferring
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.ResolveDeliveryOutcome(context.Background(), ResolveDeliveryOutcomeInput{
		OrderID:     order.ID,
		ClaimStatus: enums.ClaimStatusDeliveredFinish,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updateTo != enums.OrderStatusFinished {
		t.Fatalf("unexpected target status %s", repo.updateTo)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderFinished {
		t.Fatalf("expected order_finished event got %+v", pub.events)
	}
}

func TestResolveDeliveryOutcomeReturnedCancelsAndReleases(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusTransferring
	repo := &stubOrdersRepo{
		order: order,
		items: []models.OrderItem{{ID: uuid.New(), OrderID: order.ID, Quantity: 1}},
	}
	pub := &stubOutboxPublisher{}
	ledger := &stubLedgerReleaser{}
	svc := newTestService(t, repo, pub, ledger)

	err := svc.ResolveDeliveryOutcome(context.Background(), ResolveDeliveryOutcomeInput{
		OrderID:     order.ID,
		ClaimStatus: enums.ClaimStatusReturnedFinish,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(ledger.calls) != 1 {
		t.Fatalf("expected ledger release got %+v", ledger.calls)
	}
	if repo.updateTo != enums.OrderStatusCancelled {
		t.Fatalf("unexpected target status %s", repo.updateTo)
	}
	payload := pub.events[0].Data.(payloads.OrderCancelledEvent)
	if payload.Reason == "" {
		t.Fatal("expected a cancellation reason naming the claim outcome")
	}
}

func TestResolveDeliveryOutcomeIgnoresNonTerminal(t *testing.T) {
	repo := &stubOrdersRepo{}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.ResolveDeliveryOutcome(context.Background(), ResolveDeliveryOutcomeInput{
		OrderID:     uuid.New(),
		ClaimStatus: enums.ClaimStatusPerformerFound,
	})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if repo.updateCalls != 0 || len(pub.events) != 0 {
		t.Fatal("non-terminal claim status must not touch the order")
	}
}

func TestResolveDeliveryOutcomeSkipsTerminalOrder(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = enums.OrderStatusFinished
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedgerReleaser{})

	err := svc.ResolveDeliveryOutcome(context.Background(), ResolveDeliveryOutcomeInput{
		OrderID:     order.ID,
		ClaimStatus: enums.ClaimStatusCancelledByTaxi,
	})
	if err != nil {
		t.Fatalf("expected no-op got %v", err)
	}
	if repo.updateCalls != 0 || len(pub.events) != 0 {
		t.Fatal("terminal order must not be rewritten")
	}
}

func TestGetForBuyerHidesForeignOrders(t *testing.T) {
	owner := uuid.New()
	order := pendingOrder(owner)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedgerReleaser{})

	_, err := svc.GetForBuyer(context.Background(), uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}

	detail, err := svc.GetForBuyer(context.Background(), owner, order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if detail.BuyerID != owner {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	now := time.Now().UTC()
	rows := []models.Order{{
		ID:                uuid.New(),
		BuyerID:           uuid.New(),
		Status:            enums.OrderStatusProcessing,
		FulfillmentMethod: enums.FulfillmentDelivery,
		GoodsTotalCents:   4500,
		DeliveryCostCents: 900,
		UsedPoints:        500,
		CreatedAt:         now,
	}}
	repo := &stubOrdersRepo{
		listRows: rows,
		listNext: &pagination.Cursor{CreatedAt: now, ID: rows[0].ID},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedgerReleaser{})

	list, err := svc.List(context.Background(), ListInput{Limit: 1})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(list.Orders) != 1 {
		t.Fatalf("expected one summary got %d", len(list.Orders))
	}
	if list.Orders[0].AmountDueCents != 4900 {
		t.Fatalf("unexpected amount due %d", list.Orders[0].AmountDueCents)
	}
	if list.NextCursor == "" {
		t.Fatal("expected encoded cursor")
	}

	_, err = svc.List(context.Background(), ListInput{Cursor: "not-base64!!"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}
