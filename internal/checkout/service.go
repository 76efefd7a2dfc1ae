package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/internal/ledger"
	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kiosko-backend/pkg/payments"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerService interface {
	Reserve(ctx context.Context, tx *gorm.DB, input ledger.ReserveInput) (*ledger.Reservation, error)
	RecordReserved(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type ordersService interface {
	MarkPaid(ctx context.Context, input orders.MarkPaidInput) error
	Cancel(ctx context.Context, input orders.CancelInput) error
}

type paymentsGateway interface {
	CreateInvoice(ctx context.Context, params payments.InvoiceCreateParams) (*payments.Invoice, error)
}

// BuyerSource resolves the buyer profile for address defaults.
type BuyerSource interface {
	FindByID(ctx context.Context, buyerID uuid.UUID) (*models.Buyer, error)
}

// ClaimCreator starts the courier claim for a paid delivery order.
type ClaimCreator interface {
	CreateDeliveryClaim(ctx context.Context, orderID uuid.UUID) error
}

// Service places orders and settles their payments.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) error
}

type service struct {
	cfg       config.CheckoutConfig
	orderRepo orders.Repository
	payRepo   Repository
	buyers    BuyerSource
	ledger    ledgerService
	orders    ordersService
	gateway   paymentsGateway
	outbox    outboxPublisher
	tx        txRunner
	claims    ClaimCreator
	logg      *logger.Logger
}

// Deps bundles the checkout service dependencies.
type Deps struct {
	Config    config.CheckoutConfig
	OrderRepo orders.Repository
	PayRepo   Repository
	Buyers    BuyerSource
	Ledger    ledgerService
	Orders    ordersService
	Gateway   paymentsGateway
	Outbox    outboxPublisher
	Tx        txRunner
	Claims    ClaimCreator
	Logger    *logger.Logger
}

// NewService wires the checkout service. Claims may be nil for pickup-only
// deployments; every other dependency is required.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.OrderRepo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.PayRepo == nil:
		return nil, fmt.Errorf("payments repository required")
	case deps.Buyers == nil:
		return nil, fmt.Errorf("buyer source required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payments gateway required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cfg:       deps.Config,
		orderRepo: deps.OrderRepo,
		payRepo:   deps.PayRepo,
		buyers:    deps.Buyers,
		ledger:    deps.Ledger,
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		outbox:    deps.Outbox,
		tx:        deps.Tx,
		claims:    deps.Claims,
		logg:      deps.Logger,
	}, nil
}

// PlaceOrder reserves stock and points, inserts the order, and decides the
// payment path from the amount due. The reservation and the order row commit
// or roll back together; the payment decision happens after the commit so a
// gateway outage can never leave a half-reserved order.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := s.validatePlaceOrder(input); err != nil {
		return nil, err
	}

	buyer, err := s.buyers.FindByID(ctx, input.BuyerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	order := &models.Order{
		BuyerID:           input.BuyerID,
		Status:            enums.OrderStatusPendingPayment,
		FulfillmentMethod: input.FulfillmentMethod,
		DeliveryCostCents: input.DeliveryCostCents,
	}
	if input.FulfillmentMethod == enums.FulfillmentDelivery {
		if err := applyDeliveryAddress(order, input, buyer); err != nil {
			return nil, err
		}
	}

	items := make([]ledger.ItemRequest, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, ledger.ItemRequest{PositionID: item.PositionID, Quantity: item.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.ledger.Reserve(ctx, tx, ledger.ReserveInput{
			BuyerID:         input.BuyerID,
			Items:           items,
			RequestedPoints: input.RequestedPoints,
		})
		if err != nil {
			return err
		}

		order.GoodsTotalCents = reservation.GoodsTotalCents
		order.UsedPoints = reservation.AppliedPoints

		repo := s.orderRepo.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		orderItems := make([]models.OrderItem, 0, len(reservation.Lines))
		for _, line := range reservation.Lines {
			orderItems = append(orderItems, models.OrderItem{
				OrderID:         order.ID,
				StockPositionID: line.Position.ID,
				Quantity:        line.Quantity,
				UnitPriceCents:  line.Position.PriceCents,
			})
		}
		if err := repo.CreateItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		if err := s.ledger.RecordReserved(ctx, tx, order); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buyerActorRef(input.BuyerID),
			Data: payloads.OrderCreatedEvent{
				OrderID:           order.ID,
				BuyerID:           order.BuyerID,
				FulfillmentMethod: order.FulfillmentMethod,
				GoodsTotalCents:   order.GoodsTotalCents,
				DeliveryCostCents: order.DeliveryCostCents,
				UsedPoints:        order.UsedPoints,
				AmountDueCents:    order.AmountDueCents(),
				ItemCount:         len(orderItems),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	return s.decidePayment(s.logg.WithOrderID(ctx, order.ID.String()), order, buyer)
}

// decidePayment routes the freshly created order down one of the three
// payment paths based on the amount due.
func (s *service) decidePayment(ctx context.Context, order *models.Order, buyer *models.Buyer) (*PlaceOrderResult, error) {
	result := &PlaceOrderResult{
		Order:          order,
		AmountDueCents: order.AmountDueCents(),
	}
	actor := buyerActor(order.BuyerID)

	switch due := result.AmountDueCents; {
	case due == 0:
		// Points fully cover the order; settle immediately.
		buyerID := order.BuyerID
		if err := s.settle(ctx, order.ID, 0, "", time.Now().UTC(), &buyerID); err != nil {
			return nil, err
		}
		order.Status = enums.OrderStatusProcessing
		return result, nil

	case due < s.cfg.MinPayableCents:
		// Below the provider minimum; cancel and report the policy, not an
		// error.
		if err := s.orders.Cancel(ctx, orders.CancelInput{
			OrderID: order.ID,
			Reason:  string(ReasonAmountBelowMinimum),
			Actor:   actor,
		}); err != nil {
			return nil, err
		}
		order.Status = enums.OrderStatusCancelled
		result.Rejection = &Rejection{
			Reason:          ReasonAmountBelowMinimum,
			MinPayableCents: s.cfg.MinPayableCents,
		}
		return result, nil

	default:
		invoice, err := s.gateway.CreateInvoice(ctx, payments.InvoiceCreateParams{
			OrderID:     order.ID.String(),
			AmountCents: due,
			Currency:    s.cfg.Currency,
			BuyerRef:    buyer.ExternalRef,
		})
		if err != nil {
			return nil, s.abortForInvoiceFailure(ctx, order, actor, err)
		}

		payment := &models.Payment{
			OrderID:     order.ID,
			ProviderRef: invoice.ProviderRef,
			AmountCents: due,
			Status:      enums.PaymentStatusPending,
		}
		if err := s.payRepo.CreatePayment(ctx, payment); err != nil {
			return nil, s.abortForInvoiceFailure(ctx, order, actor,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment"))
		}

		result.InvoiceURL = invoice.URL
		return result, nil
	}
}

// abortForInvoiceFailure cancels the order after a gateway failure so the
// reservation is not held for an order nobody can pay.
func (s *service) abortForInvoiceFailure(ctx context.Context, order *models.Order, actor orders.ActorInput, cause error) error {
	s.logg.Error(ctx, "invoice creation failed, cancelling order", cause)
	if err := s.orders.Cancel(ctx, orders.CancelInput{
		OrderID: order.ID,
		Reason:  "invoice creation failed",
		Actor:   actor,
	}); err != nil {
		s.logg.Error(ctx, "order cancel after invoice failure also failed", err)
	}
	if pkgerrors.As(cause) != nil {
		return cause
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "create invoice")
}

// ConfirmPayment settles the order the provider reference points at. Safe to
// call more than once: the order service treats repeated confirmations of a
// settled order as a no-op.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) error {
	if input.ProviderRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference required")
	}

	payment, err := s.payRepo.FindByProviderRef(ctx, input.ProviderRef)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown provider reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	ctx = s.logg.WithOrderID(ctx, payment.OrderID.String())
	settleErr := s.settle(ctx, payment.OrderID, input.AmountCents, input.ProviderRef, paidAt, nil)
	if settleErr != nil {
		// A confirmation that lost the race against expiry still charged
		// the buyer. Record the succeeded payment for manual reconciliation
		// and let the caller decide what the conflict means.
		typed := pkgerrors.As(settleErr)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			return settleErr
		}
		s.logg.Warn(ctx, "payment confirmed for an order that is no longer payable")
	}
	if err := s.payRepo.MarkSucceeded(ctx, payment.ID, paidAt, input.Payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment row")
	}
	return settleErr
}

// settle flips the order to processing and, for delivery orders, kicks off
// claim creation. Claim failures are logged and left for the reconciliation
// jobs; the settlement itself never fails because of them.
func (s *service) settle(ctx context.Context, orderID uuid.UUID, amountCents int64, providerRef string, paidAt time.Time, buyerID *uuid.UUID) error {
	actor := orders.ActorInput{Role: "payment_provider"}
	if buyerID != nil {
		actor = buyerActor(*buyerID)
	}
	if err := s.orders.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID:     orderID,
		AmountCents: amountCents,
		ProviderRef: providerRef,
		PaidAt:      paidAt,
		Actor:       actor,
	}); err != nil {
		return err
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload settled order")
	}
	if order.FulfillmentMethod != enums.FulfillmentDelivery {
		return nil
	}
	if s.claims == nil {
		s.logg.Warn(ctx, "no claim creator configured for delivery order")
		return nil
	}
	if err := s.claims.CreateDeliveryClaim(ctx, orderID); err != nil {
		s.logg.Error(ctx, "delivery claim creation failed after settlement", err)
	}
	return nil
}

func (s *service) validatePlaceOrder(input PlaceOrderInput) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for _, item := range input.Items {
		if item.PositionID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item position id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	if !input.FulfillmentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment method")
	}
	if input.RequestedPoints < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested points cannot be negative")
	}
	if input.DeliveryCostCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery cost cannot be negative")
	}
	if input.FulfillmentMethod == enums.FulfillmentPickup && input.DeliveryCostCents != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup orders cannot carry a delivery cost")
	}
	return nil
}

// applyDeliveryAddress fills the order delivery fields from the input,
// falling back to the buyer profile.
func applyDeliveryAddress(order *models.Order, input PlaceOrderInput, buyer *models.Buyer) error {
	address := input.Address
	porch := input.Porch
	floor := input.Floor
	apartment := input.Apartment
	if address == nil || *address == "" {
		address = buyer.Address
		porch = buyer.Porch
		floor = buyer.Floor
		apartment = buyer.Apartment
	}
	if address == nil || *address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	order.DeliveryAddress = address
	order.DeliveryPorch = porch
	order.DeliveryFloor = floor
	order.DeliveryApartment = apartment
	return nil
}

func buyerActor(buyerID uuid.UUID) orders.ActorInput {
	id := buyerID
	return orders.ActorInput{BuyerID: &id, Role: "buyer"}
}

func buyerActorRef(buyerID uuid.UUID) *outbox.ActorRef {
	id := buyerID
	return &outbox.ActorRef{BuyerID: &id, Role: "buyer"}
}
