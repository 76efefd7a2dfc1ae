package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/kiosko-backend/api/controllers/webhooks"
	"github.com/angelmondragon/kiosko-backend/internal/buyers"
	checkoutsvc "github.com/angelmondragon/kiosko-backend/internal/checkout"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	"github.com/angelmondragon/kiosko-backend/internal/operators"
	internalorders "github.com/angelmondragon/kiosko-backend/internal/orders"
	paymentwebhook "github.com/angelmondragon/kiosko-backend/internal/webhooks/payment"
	pkgAuth "github.com/angelmondragon/kiosko-backend/pkg/auth"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
)

const testServiceToken = "gw-secret"

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test"},
		Gateway: config.GatewayConfig{ServiceToken: testServiceToken},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "kiosko",
			ExpirationMinutes: 30,
		},
		Checkout: config.CheckoutConfig{Currency: "USD"},
	}
}

func testRouter(cfg *config.Config) http.Handler {
	return NewRouter(Deps{
		Config:         cfg,
		DBPinger:       stubPinger{},
		Operators:      stubOperatorsService{},
		Buyers:         stubBuyersService{},
		Checkout:       stubCheckoutService{},
		Orders:         stubOrdersService{},
		Fulfillment:    stubFulfillmentService{},
		Warehouses:     stubWarehouseRepo{},
		Geocoder:       stubGeocoder{},
		DeliveryQuoter: stubQuoter{},
		PaymentWebhook: stubWebhookService{},
		PaymentSigner:  stubSigner{},
		PaymentGuard:   stubGuard{},
	})
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := testRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%s)", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Kiosko-Env") != "test" {
			t.Fatalf("%s: env header missing", path)
		}
	}
}

func TestRouterServiceRoutesRequireToken(t *testing.T) {
	router := testRouter(testConfig())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/buyers/tg-42", strings.NewReader(`{"display_name":"Ivan","phone":"+70000000002"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without service token, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPut, "/api/v1/buyers/tg-42", strings.NewReader(`{"display_name":"Ivan","phone":"+70000000002"}`))
	req2.Header.Set("X-Service-Token", testServiceToken)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with service token, got %d (%s)", rec2.Code, rec2.Body.String())
	}
}

func TestRouterOrderCancelAcceptsEitherSurface(t *testing.T) {
	cfg := testConfig()
	router := testRouter(cfg)
	path := "/api/v1/orders/" + uuid.NewString() + "/cancel"
	body := `{"reason":"changed my mind"}`

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("X-Service-Token", testServiceToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("gateway cancel: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleOperator,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req2 := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req2.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("operator cancel: expected 200, got %d (%s)", rec2.Code, rec2.Body.String())
	}

	req3 := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req3)
	if rec3.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous cancel: expected 401, got %d", rec3.Code)
	}
}

func TestRouterOperatorCreationIsAdminOnly(t *testing.T) {
	cfg := testConfig()
	router := testRouter(cfg)
	body := `{"login":"new.operator","password":"super-secret","display_name":"New","role":"operator"}`

	operatorToken, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleOperator,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operators", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+operatorToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("operator role: expected 403, got %d", rec.Code)
	}

	adminToken, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/operators", strings.NewReader(body))
	req2.Header.Set("Authorization", "Bearer "+adminToken)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("admin role: expected 201, got %d (%s)", rec2.Code, rec2.Body.String())
	}
}

func TestRouterStatusRouteRejectsServiceToken(t *testing.T) {
	router := testRouter(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"ready"}`))
	req.Header.Set("X-Service-Token", testServiceToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

var _ controllers.Pinger = stubPinger{}

type stubOperatorsService struct{}

func (stubOperatorsService) Login(context.Context, operators.LoginInput) (*operators.LoginResult, error) {
	return &operators.LoginResult{Token: "jwt"}, nil
}

func (stubOperatorsService) CreateOperator(context.Context, operators.CreateOperatorInput) (*models.Operator, error) {
	return &models.Operator{Login: "new.operator", Role: enums.OperatorRoleOperator}, nil
}

func (stubOperatorsService) EnsureBootstrapAdmin(context.Context) error { return nil }

type stubBuyersService struct{}

func (stubBuyersService) Upsert(ctx context.Context, externalRef string, input buyers.UpsertInput) (*models.Buyer, error) {
	return &models.Buyer{ExternalRef: externalRef}, nil
}

func (stubBuyersService) FindByID(context.Context, uuid.UUID) (*models.Buyer, error) {
	return nil, nil
}

func (stubBuyersService) FindByExternalRef(context.Context, string) (*models.Buyer, error) {
	return nil, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) PlaceOrder(context.Context, checkoutsvc.PlaceOrderInput) (*checkoutsvc.PlaceOrderResult, error) {
	return &checkoutsvc.PlaceOrderResult{Order: &models.Order{ID: uuid.New()}}, nil
}

func (stubCheckoutService) ConfirmPayment(context.Context, checkoutsvc.ConfirmPaymentInput) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Get(context.Context, uuid.UUID) (*internalorders.OrderDetail, error) {
	return &internalorders.OrderDetail{}, nil
}

func (stubOrdersService) GetForBuyer(context.Context, uuid.UUID, uuid.UUID) (*internalorders.OrderDetail, error) {
	return &internalorders.OrderDetail{}, nil
}

func (stubOrdersService) List(context.Context, internalorders.ListInput) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (stubOrdersService) AdvanceStatus(context.Context, internalorders.AdvanceStatusInput) error {
	return nil
}

func (stubOrdersService) MarkPaid(context.Context, internalorders.MarkPaidInput) error { return nil }

func (stubOrdersService) AttachClaim(context.Context, internalorders.AttachClaimInput) error {
	return nil
}

func (stubOrdersService) Cancel(context.Context, internalorders.CancelInput) error { return nil }

func (stubOrdersService) CancelFromStatus(context.Context, internalorders.CancelFromStatusInput) error {
	return nil
}

func (stubOrdersService) ResolveDeliveryOutcome(context.Context, internalorders.ResolveDeliveryOutcomeInput) error {
	return nil
}

type stubFulfillmentService struct{}

func (stubFulfillmentService) CreateDeliveryClaim(context.Context, uuid.UUID) error { return nil }

func (stubFulfillmentService) CancelOrder(context.Context, fulfillment.CancelOrderInput) error {
	return nil
}

func (stubFulfillmentService) DeliveryDetails(context.Context, uuid.UUID) (*fulfillment.DeliveryDetails, error) {
	return &fulfillment.DeliveryDetails{}, nil
}

func (stubFulfillmentService) SyncClaimStatus(context.Context, *models.Order) error { return nil }

type stubWarehouseRepo struct{}

func (stubWarehouseRepo) FindDefault(context.Context) (*models.Warehouse, error) {
	return &models.Warehouse{}, nil
}

func (stubWarehouseRepo) FindByID(context.Context, uuid.UUID) (*models.Warehouse, error) {
	return &models.Warehouse{}, nil
}

func (stubWarehouseRepo) ListActive(context.Context) ([]models.Warehouse, error) { return nil, nil }

type stubGeocoder struct{}

func (stubGeocoder) Geocode(context.Context, string) (*geocode.Point, error) {
	return &geocode.Point{}, nil
}

type stubQuoter struct{}

func (stubQuoter) QuotePrice(context.Context, delivery.QuoteRequest) (int64, error) { return 0, nil }

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(context.Context, *paymentwebhook.WebhookEvent) error {
	return nil
}

type stubSigner struct{}

func (stubSigner) SigningSecret() string { return "secret" }

type stubGuard struct{}

func (stubGuard) CheckAndMark(context.Context, string) (bool, error) { return false, nil }

func (stubGuard) Delete(context.Context, string) error { return nil }

var _ webhookcontrollers.PaymentWebhookGuard = stubGuard{}
