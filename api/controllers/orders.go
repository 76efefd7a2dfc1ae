package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/api/middleware"
	"github.com/angelmondragon/kiosko-backend/api/responses"
	"github.com/angelmondragon/kiosko-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/kiosko-backend/internal/checkout"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	internalorders "github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/pagination"
)

type orderItemRequest struct {
	PositionID uuid.UUID `json:"position_id" validate:"required,uuid4"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	BuyerID           uuid.UUID          `json:"buyer_id" validate:"required,uuid4"`
	Items             []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	FulfillmentMethod string             `json:"fulfillment_method" validate:"required,oneof=pickup delivery"`
	Address           *string            `json:"address,omitempty" validate:"omitempty,max=512"`
	Porch             *string            `json:"porch,omitempty" validate:"omitempty,max=16"`
	Floor             *string            `json:"floor,omitempty" validate:"omitempty,max=16"`
	Apartment         *string            `json:"apartment,omitempty" validate:"omitempty,max=16"`
	RequestedPoints   int64              `json:"requested_points" validate:"gte=0"`
	DeliveryCostCents int64              `json:"delivery_cost_cents" validate:"gte=0"`
}

type createOrderResponse struct {
	OrderID        uuid.UUID              `json:"order_id"`
	Status         enums.OrderStatus      `json:"status"`
	AmountDueCents int64                  `json:"amount_due_cents"`
	InvoiceURL     string                 `json:"invoice_url,omitempty"`
	Rejection      *checkoutsvc.Rejection `json:"rejection,omitempty"`
}

// CreateOrder places an order against the reserved stock and loyalty
// balance and starts the payment flow.
func CreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseFulfillmentMethod(body.FulfillmentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment method"))
			return
		}

		items := make([]checkoutsvc.ItemInput, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, checkoutsvc.ItemInput{
				PositionID: item.PositionID,
				Quantity:   item.Quantity,
			})
		}

		result, err := svc.PlaceOrder(r.Context(), checkoutsvc.PlaceOrderInput{
			BuyerID:           body.BuyerID,
			Items:             items,
			FulfillmentMethod: method,
			Address:           body.Address,
			Porch:             body.Porch,
			Floor:             body.Floor,
			Apartment:         body.Apartment,
			RequestedPoints:   body.RequestedPoints,
			DeliveryCostCents: body.DeliveryCostCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderResponse{
			OrderID:        result.Order.ID,
			Status:         result.Order.Status,
			AmountDueCents: result.AmountDueCents,
			InvoiceURL:     result.InvoiceURL,
			Rejection:      result.Rejection,
		})
	}
}

// GetOrder returns the full order view. The gateway scopes the read to its
// buyer; operators read any order.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if rawBuyer := strings.TrimSpace(r.URL.Query().Get("buyer")); rawBuyer != "" {
			buyerID, err := uuid.Parse(rawBuyer)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id"))
				return
			}
			detail, err := svc.GetForBuyer(r.Context(), buyerID, orderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, detail)
			return
		}

		detail, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ListOrders returns a cursor-paginated page of order summaries.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), internalorders.ListInput{
			Filters: filters,
			Limit:   limit,
			Cursor:  strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

type cancelOrderRequest struct {
	Reason  string     `json:"reason" validate:"required,min=1,max=256"`
	BuyerID *uuid.UUID `json:"buyer_id,omitempty" validate:"omitempty,uuid4"`
}

// CancelOrder runs the full cancellation flow, including the delivery claim
// teardown when one is attached.
func CancelOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelOrder(r.Context(), fulfillment.CancelOrderInput{
			OrderID: orderID,
			Reason:  body.Reason,
			Actor:   actorFromRequest(r, body.BuyerID),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdvanceOrderStatus drives one operator-initiated transition through the
// status table.
func AdvanceOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body advanceStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		to, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		if err := svc.AdvanceStatus(r.Context(), internalorders.AdvanceStatusInput{
			OrderID: orderID,
			To:      to,
			Actor:   actorFromRequest(r, nil),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(to)})
	}
}

// OrderDeliveryDetails returns the live courier view for a transferring
// order. Fields the provider could not answer for are omitted.
func OrderDeliveryDetails(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		details, err := svc.DeliveryDetails(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, details)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

// actorFromRequest builds the mutation attribution from the auth context.
// Gateway calls act on behalf of the buyer named in the body; operator calls
// carry the operator id minted into the context by the JWT middleware.
func actorFromRequest(r *http.Request, buyerID *uuid.UUID) internalorders.ActorInput {
	actor := internalorders.ActorInput{Role: middleware.RoleFromContext(r.Context())}
	if raw := middleware.OperatorIDFromContext(r.Context()); raw != "" {
		if operatorID, err := uuid.Parse(raw); err == nil {
			actor.OperatorID = &operatorID
		}
	}
	if actor.Role == "gateway" {
		actor.BuyerID = buyerID
		actor.Role = "buyer"
	}
	return actor
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	var filters internalorders.ListFilters

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("buyer")); raw != "" {
		buyerID, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id")
		}
		filters.BuyerID = &buyerID
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("method")); raw != "" {
		method, err := enums.ParseFulfillmentMethod(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment method")
		}
		filters.FulfillmentMethod = &method
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from date")
		}
		filters.DateFrom = &from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to date")
		}
		filters.DateTo = &to
	}

	return filters, nil
}
