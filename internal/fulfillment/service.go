package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

// BuyerSource resolves buyer contact details for claim route points.
type BuyerSource interface {
	FindByID(ctx context.Context, buyerID uuid.UUID) (*models.Buyer, error)
}

// WarehouseSource resolves the claim origin.
type WarehouseSource interface {
	FindDefault(ctx context.Context) (*models.Warehouse, error)
}

type geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Point, error)
}

type ordersService interface {
	AttachClaim(ctx context.Context, input orders.AttachClaimInput) error
	Cancel(ctx context.Context, input orders.CancelInput) error
	ResolveDeliveryOutcome(ctx context.Context, input orders.ResolveDeliveryOutcomeInput) error
}

// Service drives the courier claim lifecycle for delivery orders.
type Service interface {
	CreateDeliveryClaim(ctx context.Context, orderID uuid.UUID) error
	CancelOrder(ctx context.Context, input CancelOrderInput) error
	DeliveryDetails(ctx context.Context, orderID uuid.UUID) (*DeliveryDetails, error)
	SyncClaimStatus(ctx context.Context, order *models.Order) error
}

type service struct {
	cfg        config.CheckoutConfig
	orderRepo  orders.Repository
	repo       Repository
	buyers     BuyerSource
	warehouses WarehouseSource
	geo        geocoder
	gateway    delivery.Gateway
	orders     ordersService
	logg       *logger.Logger
}

// Deps bundles the fulfillment service dependencies.
type Deps struct {
	Config     config.CheckoutConfig
	OrderRepo  orders.Repository
	Repo       Repository
	Buyers     BuyerSource
	Warehouses WarehouseSource
	Geocoder   geocoder
	Gateway    delivery.Gateway
	Orders     ordersService
	Logger     *logger.Logger
}

// NewService wires the fulfillment service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.OrderRepo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("fulfillment repository required")
	case deps.Buyers == nil:
		return nil, fmt.Errorf("buyer source required")
	case deps.Warehouses == nil:
		return nil, fmt.Errorf("warehouse source required")
	case deps.Geocoder == nil:
		return nil, fmt.Errorf("geocoder required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("delivery gateway required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cfg:        deps.Config,
		orderRepo:  deps.OrderRepo,
		repo:       deps.Repo,
		buyers:     deps.Buyers,
		warehouses: deps.Warehouses,
		geo:        deps.Geocoder,
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		logg:       deps.Logger,
	}, nil
}

// CreateDeliveryClaim builds, creates, and accepts the courier claim for a
// paid delivery order. The claim id is persisted only after the provider
// accepted; a created-but-not-accepted claim leaves the order without a claim
// id on purpose, where the stuck-processing job picks it up.
func (s *service) CreateDeliveryClaim(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.FulfillmentMethod != enums.FulfillmentDelivery {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is not a delivery order")
	}
	if order.DeliveryClaimID != nil {
		return nil
	}
	if order.Status != enums.OrderStatusProcessing {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot open a delivery claim for an order in status %s", order.Status))
	}
	if order.DeliveryAddress == nil || *order.DeliveryAddress == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no delivery address")
	}

	request, err := s.buildClaimRequest(ctx, order)
	if err != nil {
		return err
	}

	claim, err := s.gateway.CreateClaim(ctx, *request)
	if err != nil {
		return err
	}
	ctx = s.logg.WithClaimID(ctx, claim.ID)

	accepted, err := s.gateway.AcceptClaim(ctx, claim.ID, claim.Version)
	if err != nil {
		s.logg.Error(ctx, "claim created but not accepted", err)
		return err
	}
	s.logg.Info(ctx, fmt.Sprintf("delivery claim accepted with status %s", accepted.Status))

	return s.orders.AttachClaim(ctx, orders.AttachClaimInput{
		OrderID: order.ID,
		ClaimID: claim.ID,
		Actor:   orders.ActorInput{Role: "fulfillment"},
	})
}

// CancelOrder cancels an order, clearing the courier claim with the provider
// first when one exists. The provider stays authoritative: a claim it already
// ended resyncs the local order instead of cancelling it blindly, and a
// cancellation it would charge for is refused without touching local state.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil
	}
	if order.Status == enums.OrderStatusFinished {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already finished")
	}

	if order.DeliveryClaimID == nil {
		return s.orders.Cancel(ctx, orders.CancelInput{
			OrderID: order.ID,
			Reason:  input.Reason,
			Actor:   input.Actor,
		})
	}

	claimID := *order.DeliveryClaimID
	ctx = s.logg.WithClaimID(ctx, claimID)

	info, err := s.gateway.GetClaimInfo(ctx, claimID)
	if err != nil {
		return err
	}
	if info.Status.IsTerminal() {
		// The provider already ended this claim; bring the order in line
		// with its verdict before judging the cancellation request.
		if err := s.orders.ResolveDeliveryOutcome(ctx, orders.ResolveDeliveryOutcomeInput{
			OrderID:     order.ID,
			ClaimStatus: info.Status,
			Reason:      fmt.Sprintf("delivery claim ended as %s", info.Status),
			Actor:       input.Actor,
		}); err != nil {
			return err
		}
		if info.Status == enums.ClaimStatusDeliveredFinish {
			return pkgerrors.New(pkgerrors.CodePolicyRejected, "order already delivered")
		}
		return nil
	}

	cancelInfo, err := s.gateway.GetCancellationInfo(ctx, claimID)
	if err != nil {
		return err
	}
	if cancelInfo.State != enums.CancelStateFree {
		return pkgerrors.New(pkgerrors.CodePolicyRejected, "delivery claim can no longer be cancelled for free").
			WithDetails(map[string]any{
				"state":     cancelInfo.State,
				"fee_cents": cancelInfo.FeeCents,
			})
	}

	if err := s.cancelClaim(ctx, claimID, info.Version); err != nil {
		return err
	}

	// The claim is now terminal on the provider side, so the local cancel
	// rides the same resync path a provider-ended claim takes: it admits
	// transferring and releases the ledger.
	reason := input.Reason
	if reason == "" {
		reason = "delivery claim cancelled for free"
	}
	return s.orders.ResolveDeliveryOutcome(ctx, orders.ResolveDeliveryOutcomeInput{
		OrderID:     order.ID,
		ClaimStatus: enums.ClaimStatusCancelled,
		Reason:      reason,
		Actor:       input.Actor,
	})
}

// cancelClaim cancels with the exact version read, retrying once with fresh
// state when the provider reports a version conflict.
func (s *service) cancelClaim(ctx context.Context, claimID string, version int) error {
	err := s.gateway.CancelClaim(ctx, claimID, enums.CancelStateFree, version)
	if err == nil {
		return nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		return err
	}

	s.logg.Warn(ctx, "claim version conflict on cancel, retrying with fresh state")
	info, err := s.gateway.GetClaimInfo(ctx, claimID)
	if err != nil {
		return err
	}
	if info.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeConflict, "claim reached a terminal state during cancellation")
	}
	cancelInfo, err := s.gateway.GetCancellationInfo(ctx, claimID)
	if err != nil {
		return err
	}
	if cancelInfo.State != enums.CancelStateFree {
		return pkgerrors.New(pkgerrors.CodePolicyRejected, "delivery claim can no longer be cancelled for free").
			WithDetails(map[string]any{
				"state":     cancelInfo.State,
				"fee_cents": cancelInfo.FeeCents,
			})
	}
	return s.gateway.CancelClaim(ctx, claimID, enums.CancelStateFree, info.Version)
}

// DeliveryDetails loads the live courier view. The three provider lookups run
// concurrently and fail independently; a partial answer beats none.
func (s *service) DeliveryDetails(ctx context.Context, orderID uuid.UUID) (*DeliveryDetails, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DeliveryClaimID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no delivery claim")
	}
	claimID := *order.DeliveryClaimID
	ctx = s.logg.WithClaimID(s.logg.WithOrderID(ctx, orderID.String()), claimID)

	details := &DeliveryDetails{}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		eta, err := s.gateway.GetETA(groupCtx, claimID)
		if err != nil {
			s.logg.Warn(groupCtx, "delivery eta lookup failed")
			return nil
		}
		if eta != nil {
			details.ETA = &eta.ExpectedAt
		}
		return nil
	})
	group.Go(func() error {
		link, err := s.gateway.GetTrackingLink(groupCtx, claimID)
		if err != nil {
			s.logg.Warn(groupCtx, "tracking link lookup failed")
			return nil
		}
		details.TrackingURL = link
		return nil
	})
	group.Go(func() error {
		contact, err := s.gateway.GetCourierContact(groupCtx, claimID)
		if err != nil {
			s.logg.Warn(groupCtx, "courier contact lookup failed")
			return nil
		}
		details.Courier = contact
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

// SyncClaimStatus reconciles one order against the provider claim state.
// Non-terminal claim statuses are left alone.
func (s *service) SyncClaimStatus(ctx context.Context, order *models.Order) error {
	if order == nil || order.DeliveryClaimID == nil {
		return nil
	}
	claimID := *order.DeliveryClaimID
	ctx = s.logg.WithClaimID(s.logg.WithOrderID(ctx, order.ID.String()), claimID)

	info, err := s.gateway.GetClaimInfo(ctx, claimID)
	if err != nil {
		return err
	}
	if !info.Status.IsTerminal() {
		return nil
	}
	return s.orders.ResolveDeliveryOutcome(ctx, orders.ResolveDeliveryOutcomeInput{
		OrderID:     order.ID,
		ClaimStatus: info.Status,
		Actor:       orders.ActorInput{Role: "delivery_sync"},
	})
}

// buildClaimRequest assembles the provider claim payload from the order, the
// buyer contact, the default warehouse, and the item physical attributes.
func (s *service) buildClaimRequest(ctx context.Context, order *models.Order) (*delivery.ClaimRequest, error) {
	buyer, err := s.buyers.FindByID(ctx, order.BuyerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	warehouse, err := s.warehouses.FindDefault(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "no default warehouse configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse")
	}

	items, err := s.orderRepo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.StockPositionID)
	}
	positions, err := s.repo.FindPositions(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock positions")
	}

	claimItems := make([]delivery.Item, 0, len(items))
	for _, item := range items {
		position, ok := positions[item.StockPositionID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("stock position %s missing for order item", item.StockPositionID))
		}
		claimItems = append(claimItems, delivery.Item{
			Title:     position.Title,
			CostCents: item.UnitPriceCents,
			Currency:  s.cfg.Currency,
			Quantity:  item.Quantity,
			WeightKG:  float64(position.WeightGrams) / 1000,
			LengthM:   float64(position.LengthMM) / 1000,
			WidthM:    float64(position.WidthMM) / 1000,
			HeightM:   float64(position.HeightMM) / 1000,
		})
	}

	source := delivery.RoutePoint{
		Fullname:     warehouse.Address,
		Lat:          warehouse.Lat,
		Lon:          warehouse.Lon,
		Porch:        warehouse.Porch,
		Floor:        warehouse.Floor,
		Apartment:    warehouse.Apartment,
		ContactName:  warehouse.ContactName,
		ContactPhone: warehouse.ContactPhone,
	}
	if source.Lat == 0 && source.Lon == 0 {
		point, err := s.geo.Geocode(ctx, warehouse.Address)
		if err != nil {
			return nil, err
		}
		source.Lat, source.Lon = point.Lat, point.Lon
	}

	destPoint, err := s.geo.Geocode(ctx, *order.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	destination := delivery.RoutePoint{
		Fullname:     *order.DeliveryAddress,
		Lat:          destPoint.Lat,
		Lon:          destPoint.Lon,
		Porch:        order.DeliveryPorch,
		Floor:        order.DeliveryFloor,
		Apartment:    order.DeliveryApartment,
		ContactName:  buyer.DisplayName,
		ContactPhone: buyer.Phone,
	}

	request := &delivery.ClaimRequest{
		Items:       claimItems,
		Source:      source,
		Destination: destination,
	}
	if warehouse.Comment != nil {
		request.Comment = *warehouse.Comment
	}
	return request, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
