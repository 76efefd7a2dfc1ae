package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/kiosko-backend/internal/analytics/types"
	"github.com/angelmondragon/kiosko-backend/internal/analytics/writer"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox/payloads"
)

type orderFinishedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderFinishedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderFinishedHandler{writer: writer, logg: logg}
}

func (h *orderFinishedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderFinishedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_finished")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode sale payload", err)
		return err
	}

	paid := event.GoodsTotalCents + event.DeliveryCostCents - event.UsedPoints
	if paid < 0 {
		paid = 0
	}

	row := types.OrderSaleRow{
		EventID:           envelope.EventID,
		OrderID:           event.OrderID.String(),
		BuyerID:           event.BuyerID.String(),
		FulfillmentMethod: string(event.FulfillmentMethod),
		GoodsTotalCents:   event.GoodsTotalCents,
		DeliveryCostCents: event.DeliveryCostCents,
		UsedPoints:        event.UsedPoints,
		PaidCents:         paid,
		FinishedAt:        event.FinishedAt.UTC(),
		OccurredAt:        envelope.OccurredAt.UTC(),
		Payload:           encoded,
	}

	if err := h.writer.InsertSale(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sale row", err)
		return err
	}

	h.logg.Info(logCtx, "order_finished handler inserted sale row")
	return nil
}
