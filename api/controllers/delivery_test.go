package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
)

var quoteCheckoutConfig = config.CheckoutConfig{Currency: "RUB"}

func TestDeliveryQuote_Success(t *testing.T) {
	warehouses := &fakeWarehouseRepo{
		byDefault: &models.Warehouse{
			Address:      "Tverskaya 1",
			Lat:          55.757,
			Lon:          37.615,
			ContactName:  "Dispatch",
			ContactPhone: "+70000000001",
		},
	}
	geo := &fakeGeocoder{point: &geocode.Point{Lat: 55.749, Lon: 37.591}}
	quoter := &fakeQuoter{cents: 14900}

	body := `{
		"address": "Arbat 20",
		"items": [{"title": "Widget", "cost_cents": 45000, "quantity": 1, "weight_kg": 1.5, "length_m": 0.3, "width_m": 0.2, "height_m": 0.1}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery/quotes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	DeliveryQuote(quoteCheckoutConfig, warehouses, geo, quoter, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data deliveryQuoteResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.PriceCents != 14900 || payload.Data.Currency != "RUB" {
		t.Fatalf("unexpected quote: %+v", payload.Data)
	}

	if quoter.req.Source.Lat != 55.757 || quoter.req.Source.ContactPhone != "+70000000001" {
		t.Fatalf("source not built from the default warehouse: %+v", quoter.req.Source)
	}
	if quoter.req.Destination.Lat != 55.749 || quoter.req.Destination.Fullname != "Arbat 20" {
		t.Fatalf("destination not geocoded: %+v", quoter.req.Destination)
	}
	if len(quoter.req.Items) != 1 || quoter.req.Items[0].Currency != "RUB" {
		t.Fatalf("items not forwarded: %+v", quoter.req.Items)
	}
}

func TestDeliveryQuote_UnknownAddress(t *testing.T) {
	warehouses := &fakeWarehouseRepo{byDefault: &models.Warehouse{}}
	geo := &fakeGeocoder{err: pkgerrors.New(pkgerrors.CodeNotFound, "could not locate address")}

	body := `{
		"address": "Nowhere 404",
		"items": [{"title": "Widget", "cost_cents": 45000, "quantity": 1, "weight_kg": 1.5, "length_m": 0.3, "width_m": 0.2, "height_m": 0.1}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery/quotes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	DeliveryQuote(quoteCheckoutConfig, warehouses, geo, &fakeQuoter{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeliveryQuote_RequiresItems(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery/quotes", strings.NewReader(`{"address": "Arbat 20", "items": []}`))
	rec := httptest.NewRecorder()
	DeliveryQuote(quoteCheckoutConfig, &fakeWarehouseRepo{}, &fakeGeocoder{}, &fakeQuoter{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type fakeWarehouseRepo struct {
	byDefault *models.Warehouse
	err       error
}

func (f *fakeWarehouseRepo) FindDefault(ctx context.Context) (*models.Warehouse, error) {
	return f.byDefault, f.err
}

func (f *fakeWarehouseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	return f.byDefault, f.err
}

func (f *fakeWarehouseRepo) ListActive(ctx context.Context) ([]models.Warehouse, error) {
	return nil, f.err
}

type fakeGeocoder struct {
	point *geocode.Point
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*geocode.Point, error) {
	return f.point, f.err
}

type fakeQuoter struct {
	req   delivery.QuoteRequest
	cents int64
	err   error
}

func (f *fakeQuoter) QuotePrice(ctx context.Context, req delivery.QuoteRequest) (int64, error) {
	f.req = req
	return f.cents, f.err
}
