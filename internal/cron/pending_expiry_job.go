package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type pendingOrderReader interface {
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	CancelFromStatus(ctx context.Context, input orders.CancelFromStatusInput) error
}

// PendingExpiryJobParams configure the payment-window expiry job.
type PendingExpiryJobParams struct {
	Logger   *logger.Logger
	Reader   pendingOrderReader
	Orders   orderCanceller
	Timeout  time.Duration
	Interval time.Duration
	Now      func() time.Time
}

// NewPendingExpiryJob builds the job that cancels orders whose payment window
// elapsed, releasing their stock and points.
func NewPendingExpiryJob(params PendingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Timeout <= 0 {
		return nil, fmt.Errorf("payment timeout required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingExpiryJob{
		logg:     params.Logger,
		reader:   params.Reader,
		orders:   params.Orders,
		timeout:  params.Timeout,
		interval: params.Interval,
		now:      now,
	}, nil
}

type pendingExpiryJob struct {
	logg     *logger.Logger
	reader   pendingOrderReader
	orders   orderCanceller
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
}

func (j *pendingExpiryJob) Name() string            { return "pending-expiry" }
func (j *pendingExpiryJob) Interval() time.Duration { return j.interval }

func (j *pendingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	stale, err := j.reader.FindPendingPaymentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find expired pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	expired := 0
	for _, order := range stale {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		err := j.orders.CancelFromStatus(orderCtx, orders.CancelFromStatusInput{
			OrderID:  order.ID,
			Expected: enums.OrderStatusPendingPayment,
			Reason:   "payment window expired",
			Actor:    orders.ActorInput{Role: "cron"},
		})
		if err != nil {
			// The webhook may have confirmed this order between the read
			// and the cancel; the optimistic guard reports that as a state
			// conflict and the order is simply no longer ours to expire.
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				j.logg.Info(orderCtx, "order settled while expiring; skipped")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	j.logg.Info(j.logg.WithField(ctx, "expired", expired),
		fmt.Sprintf("pending expiry pass handled %d orders", len(stale)))
	return errs
}
