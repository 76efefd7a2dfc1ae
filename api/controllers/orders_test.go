package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/kiosko-backend/internal/checkout"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	internalorders "github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

func TestCreateOrder_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &fakeCheckoutService{
		result: &checkoutsvc.PlaceOrderResult{
			Order:          &models.Order{ID: orderID, Status: enums.OrderStatusPendingPayment},
			AmountDueCents: 22500,
			InvoiceURL:     "https://pay.example.com/inv-1",
		},
	}

	body := `{
		"buyer_id": "` + uuid.NewString() + `",
		"items": [{"position_id": "` + uuid.NewString() + `", "quantity": 2}],
		"fulfillment_method": "delivery",
		"address": "Arbat 20",
		"requested_points": 500,
		"delivery_cost_cents": 9900
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data createOrderResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.OrderID != orderID {
		t.Fatalf("unexpected order id: %s", payload.Data.OrderID)
	}
	if payload.Data.InvoiceURL != "https://pay.example.com/inv-1" {
		t.Fatalf("unexpected invoice url: %s", payload.Data.InvoiceURL)
	}
	if svc.input.RequestedPoints != 500 || svc.input.DeliveryCostCents != 9900 {
		t.Fatalf("input not forwarded: %+v", svc.input)
	}
	if svc.input.FulfillmentMethod != enums.FulfillmentDelivery {
		t.Fatalf("unexpected method: %s", svc.input.FulfillmentMethod)
	}
}

func TestCreateOrder_PolicyRejectionIsNotAnError(t *testing.T) {
	svc := &fakeCheckoutService{
		result: &checkoutsvc.PlaceOrderResult{
			Order:          &models.Order{ID: uuid.New(), Status: enums.OrderStatusCancelled},
			AmountDueCents: 4500,
			Rejection: &checkoutsvc.Rejection{
				Reason:          checkoutsvc.ReasonAmountBelowMinimum,
				MinPayableCents: 6000,
			},
		},
	}

	body := `{
		"buyer_id": "` + uuid.NewString() + `",
		"items": [{"position_id": "` + uuid.NewString() + `", "quantity": 1}],
		"fulfillment_method": "pickup"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data createOrderResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Rejection == nil || payload.Data.Rejection.Reason != checkoutsvc.ReasonAmountBelowMinimum {
		t.Fatalf("rejection not surfaced: %+v", payload.Data)
	}
}

func TestCreateOrder_RejectsBadMethod(t *testing.T) {
	svc := &fakeCheckoutService{}
	body := `{
		"buyer_id": "` + uuid.NewString() + `",
		"items": [{"position_id": "` + uuid.NewString() + `", "quantity": 1}],
		"fulfillment_method": "teleport"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be reached")
	}
}

func TestCancelOrder_GatewayActsForBuyer(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	svc := &fakeFulfillmentService{}

	router := chi.NewRouter()
	router.Post("/api/v1/orders/{orderID}/cancel", CancelOrder(svc, nil))

	body := `{"reason": "changed my mind", "buyer_id": "` + buyerID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(body))
	req = req.WithContext(middleware.WithRole(req.Context(), "gateway"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.cancelInput.OrderID != orderID {
		t.Fatalf("order id not forwarded")
	}
	if svc.cancelInput.Actor.Role != "buyer" {
		t.Fatalf("expected buyer role, got %q", svc.cancelInput.Actor.Role)
	}
	if svc.cancelInput.Actor.BuyerID == nil || *svc.cancelInput.Actor.BuyerID != buyerID {
		t.Fatalf("buyer id not attributed")
	}
}

func TestAdvanceOrderStatus_OperatorAttribution(t *testing.T) {
	orderID := uuid.New()
	operatorID := uuid.New()
	svc := &fakeOrdersService{}

	router := chi.NewRouter()
	router.Post("/api/v1/orders/{orderID}/status", AdvanceOrderStatus(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status": "ready"}`))
	ctx := middleware.WithOperatorID(req.Context(), operatorID.String())
	ctx = middleware.WithRole(ctx, string(enums.OperatorRoleOperator))
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.advanceInput.To != enums.OrderStatusReady {
		t.Fatalf("unexpected target status: %s", svc.advanceInput.To)
	}
	if svc.advanceInput.Actor.OperatorID == nil || *svc.advanceInput.Actor.OperatorID != operatorID {
		t.Fatalf("operator not attributed: %+v", svc.advanceInput.Actor)
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/v1/orders/{orderID}", GetOrder(&fakeOrdersService{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListOrders_ParsesFilters(t *testing.T) {
	svc := &fakeOrdersService{list: &internalorders.OrderList{}}
	buyerID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?buyer="+buyerID.String()+"&status=processing&method=delivery&limit=10", nil)
	rec := httptest.NewRecorder()
	ListOrders(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.listInput.Limit != 10 {
		t.Fatalf("limit not forwarded: %d", svc.listInput.Limit)
	}
	filters := svc.listInput.Filters
	if filters.BuyerID == nil || *filters.BuyerID != buyerID {
		t.Fatalf("buyer filter missing")
	}
	if filters.Status == nil || *filters.Status != enums.OrderStatusProcessing {
		t.Fatalf("status filter missing")
	}
	if filters.FulfillmentMethod == nil || *filters.FulfillmentMethod != enums.FulfillmentDelivery {
		t.Fatalf("method filter missing")
	}
}

type fakeCheckoutService struct {
	calls  int
	input  checkoutsvc.PlaceOrderInput
	result *checkoutsvc.PlaceOrderResult
	err    error
}

func (f *fakeCheckoutService) PlaceOrder(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.PlaceOrderResult, error) {
	f.calls++
	f.input = input
	return f.result, f.err
}

func (f *fakeCheckoutService) ConfirmPayment(ctx context.Context, input checkoutsvc.ConfirmPaymentInput) error {
	return nil
}

type fakeOrdersService struct {
	advanceInput internalorders.AdvanceStatusInput
	listInput    internalorders.ListInput
	list         *internalorders.OrderList
	detail       *internalorders.OrderDetail
	err          error
}

func (f *fakeOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
	return f.detail, f.err
}

func (f *fakeOrdersService) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
	return f.detail, f.err
}

func (f *fakeOrdersService) List(ctx context.Context, input internalorders.ListInput) (*internalorders.OrderList, error) {
	f.listInput = input
	return f.list, f.err
}

func (f *fakeOrdersService) AdvanceStatus(ctx context.Context, input internalorders.AdvanceStatusInput) error {
	f.advanceInput = input
	return f.err
}

func (f *fakeOrdersService) MarkPaid(ctx context.Context, input internalorders.MarkPaidInput) error {
	return f.err
}

func (f *fakeOrdersService) AttachClaim(ctx context.Context, input internalorders.AttachClaimInput) error {
	return f.err
}

func (f *fakeOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) error {
	return f.err
}

func (f *fakeOrdersService) CancelFromStatus(ctx context.Context, input internalorders.CancelFromStatusInput) error {
	return f.err
}

func (f *fakeOrdersService) ResolveDeliveryOutcome(ctx context.Context, input internalorders.ResolveDeliveryOutcomeInput) error {
	return f.err
}

type fakeFulfillmentService struct {
	cancelInput fulfillment.CancelOrderInput
	details     *fulfillment.DeliveryDetails
	err         error
}

func (f *fakeFulfillmentService) CreateDeliveryClaim(ctx context.Context, orderID uuid.UUID) error {
	return f.err
}

func (f *fakeFulfillmentService) CancelOrder(ctx context.Context, input fulfillment.CancelOrderInput) error {
	f.cancelInput = input
	return f.err
}

func (f *fakeFulfillmentService) DeliveryDetails(ctx context.Context, orderID uuid.UUID) (*fulfillment.DeliveryDetails, error) {
	return f.details, f.err
}

func (f *fakeFulfillmentService) SyncClaimStatus(ctx context.Context, order *models.Order) error {
	return f.err
}
