package paymentwebhook

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kiosko-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type checkoutService interface {
	ConfirmPayment(ctx context.Context, input checkout.ConfirmPaymentInput) error
}

// Service routes payment provider notifications into the checkout flow.
type Service struct {
	checkout checkoutService
	logg     *logger.Logger
}

// ServiceParams bundles the webhook service dependencies.
type ServiceParams struct {
	Checkout checkoutService
	Logger   *logger.Logger
}

// NewService wires the payment webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{checkout: params.Checkout, logg: params.Logger}, nil
}

// HandleEvent processes one verified provider notification. Events other
// than a completed payment update are acknowledged and dropped. A completed
// payment for an order that already expired is acknowledged too: the provider
// will not stop redelivering over a conflict we cannot undo.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	if event.Type != EventTypePaymentUpdated {
		return nil
	}

	payment := event.Data.Object.Payment
	if payment.Status != paymentStatusCompleted {
		return nil
	}
	if payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment order reference missing")
	}

	paidAt := event.CreatedAt
	if raw := payment.UpdatedAt; raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			paidAt = parsed
		}
	}

	err := s.checkout.ConfirmPayment(ctx, checkout.ConfirmPaymentInput{
		ProviderRef: payment.OrderID,
		AmountCents: payment.AmountMoney.Amount,
		PaidAt:      paidAt,
		Payload:     event.RawPayload(),
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			s.logg.Warn(ctx, fmt.Sprintf("late payment confirmation for provider ref %s acknowledged", payment.OrderID))
			return nil
		}
		return err
	}

	s.logg.Info(ctx, fmt.Sprintf("payment confirmed for provider ref %s", payment.OrderID))
	return nil
}
