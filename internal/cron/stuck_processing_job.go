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

type stuckOrderReader interface {
	FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// StuckProcessingJobParams configure the stuck-claim cleanup job.
type StuckProcessingJobParams struct {
	Logger   *logger.Logger
	Reader   stuckOrderReader
	Orders   orderCanceller
	Grace    time.Duration
	Interval time.Duration
	Now      func() time.Time
}

// NewStuckProcessingJob builds the job that cancels paid delivery orders
// whose claim never got created or accepted within the grace period. The
// cancellation releases the stock and points the order held.
func NewStuckProcessingJob(params StuckProcessingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("stuck orders reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Grace <= 0 {
		return nil, fmt.Errorf("grace period required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &stuckProcessingJob{
		logg:     params.Logger,
		reader:   params.Reader,
		orders:   params.Orders,
		grace:    params.Grace,
		interval: params.Interval,
		now:      now,
	}, nil
}

type stuckProcessingJob struct {
	logg     *logger.Logger
	reader   stuckOrderReader
	orders   orderCanceller
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
}

func (j *stuckProcessingJob) Name() string            { return "stuck-processing" }
func (j *stuckProcessingJob) Interval() time.Duration { return j.interval }

func (j *stuckProcessingJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	stuck, err := j.reader.FindStuckProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stuck processing orders: %w", err)
	}
	if len(stuck) == 0 {
		return nil
	}

	var errs error
	cancelled := 0
	for _, order := range stuck {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		err := j.orders.CancelFromStatus(orderCtx, orders.CancelFromStatusInput{
			OrderID:  order.ID,
			Expected: enums.OrderStatusProcessing,
			Reason:   "delivery claim could not be created",
			Actor:    orders.ActorInput{Role: "cron"},
		})
		if err != nil {
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				j.logg.Info(orderCtx, "order moved on while cleaning up; skipped")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("cancel stuck order %s: %w", order.ID, err))
			continue
		}
		j.logg.Warn(orderCtx, "paid order cancelled after claim creation stalled")
		cancelled++
	}

	j.logg.Info(j.logg.WithField(ctx, "cancelled", cancelled),
		fmt.Sprintf("stuck processing pass handled %d orders", len(stuck)))
	return errs
}
