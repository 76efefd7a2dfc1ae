package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/kiosko-backend/internal/analytics/types"
	"github.com/angelmondragon/kiosko-backend/internal/analytics/writer"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox/payloads"
)

type orderCancelledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderCancelledHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderCancelledHandler{writer: writer, logg: logg}
}

func (h *orderCancelledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCancelledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_cancelled")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode cancellation payload", err)
		return err
	}

	var reason *string
	if event.Reason != "" {
		r := event.Reason
		reason = &r
	}

	row := types.OrderCancellationRow{
		EventID:        envelope.EventID,
		OrderID:        event.OrderID.String(),
		BuyerID:        event.BuyerID.String(),
		PreviousStatus: string(event.PreviousStatus),
		Reason:         reason,
		CancelledAt:    event.CancelledAt.UTC(),
		OccurredAt:     envelope.OccurredAt.UTC(),
		Payload:        encoded,
	}

	if err := h.writer.InsertCancellation(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert cancellation row", err)
		return err
	}

	h.logg.Info(logCtx, "order_cancelled handler inserted cancellation row")
	return nil
}
