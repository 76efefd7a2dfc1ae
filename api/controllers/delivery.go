package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/kiosko-backend/api/responses"
	"github.com/angelmondragon/kiosko-backend/api/validators"
	"github.com/angelmondragon/kiosko-backend/internal/warehouses"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Point, error)
}

// DeliveryQuoter prices a route with the delivery provider.
type DeliveryQuoter interface {
	QuotePrice(ctx context.Context, req delivery.QuoteRequest) (int64, error)
}

type quoteItemRequest struct {
	Title     string  `json:"title" validate:"required,min=1,max=128"`
	CostCents int64   `json:"cost_cents" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	WeightKG  float64 `json:"weight_kg" validate:"required,gt=0"`
	LengthM   float64 `json:"length_m" validate:"required,gt=0"`
	WidthM    float64 `json:"width_m" validate:"required,gt=0"`
	HeightM   float64 `json:"height_m" validate:"required,gt=0"`
}

type deliveryQuoteRequest struct {
	Address string             `json:"address" validate:"required,min=3,max=512"`
	Items   []quoteItemRequest `json:"items" validate:"required,min=1,dive"`
}

type deliveryQuoteResponse struct {
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// DeliveryQuote prices a route from the default warehouse to the buyer's
// address without creating a claim.
func DeliveryQuote(cfg config.CheckoutConfig, warehouseRepo warehouses.Repository, geo Geocoder, quoter DeliveryQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if warehouseRepo == nil || geo == nil || quoter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery quoting unavailable"))
			return
		}

		var body deliveryQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warehouse, err := warehouseRepo.FindDefault(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		point, err := geo.Geocode(r.Context(), body.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]delivery.Item, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, delivery.Item{
				Title:     item.Title,
				CostCents: item.CostCents,
				Currency:  cfg.Currency,
				Quantity:  item.Quantity,
				WeightKG:  item.WeightKG,
				LengthM:   item.LengthM,
				WidthM:    item.WidthM,
				HeightM:   item.HeightM,
			})
		}

		cents, err := quoter.QuotePrice(r.Context(), delivery.QuoteRequest{
			Items: items,
			Source: delivery.RoutePoint{
				Fullname:     warehouse.Address,
				Lat:          warehouse.Lat,
				Lon:          warehouse.Lon,
				ContactName:  warehouse.ContactName,
				ContactPhone: warehouse.ContactPhone,
			},
			Destination: delivery.RoutePoint{
				Fullname: body.Address,
				Lat:      point.Lat,
				Lon:      point.Lon,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, deliveryQuoteResponse{PriceCents: cents, Currency: cfg.Currency})
	}
}
