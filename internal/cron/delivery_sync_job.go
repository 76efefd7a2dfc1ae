package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type activeClaimReader interface {
	FindActiveWithClaim(ctx context.Context) ([]models.Order, error)
}

type claimSyncer interface {
	SyncClaimStatus(ctx context.Context, order *models.Order) error
}

// DeliverySyncJobParams configure the claim status reconciliation job.
type DeliverySyncJobParams struct {
	Logger      *logger.Logger
	Reader      activeClaimReader
	Fulfillment claimSyncer
	Interval    time.Duration
}

// NewDeliverySyncJob builds the job that polls the provider for every order
// with an open claim and applies terminal outcomes.
func NewDeliverySyncJob(params DeliverySyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("active orders reader required")
	}
	if params.Fulfillment == nil {
		return nil, fmt.Errorf("fulfillment service required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval required")
	}
	return &deliverySyncJob{
		logg:        params.Logger,
		reader:      params.Reader,
		fulfillment: params.Fulfillment,
		interval:    params.Interval,
	}, nil
}

type deliverySyncJob struct {
	logg        *logger.Logger
	reader      activeClaimReader
	fulfillment claimSyncer
	interval    time.Duration
}

func (j *deliverySyncJob) Name() string            { return "delivery-sync" }
func (j *deliverySyncJob) Interval() time.Duration { return j.interval }

func (j *deliverySyncJob) Run(ctx context.Context) error {
	active, err := j.reader.FindActiveWithClaim(ctx)
	if err != nil {
		return fmt.Errorf("find orders with open claims: %w", err)
	}

	var errs error
	for i := range active {
		order := &active[i]
		if err := j.fulfillment.SyncClaimStatus(ctx, order); err != nil {
			// One unreachable claim must not starve the rest of the batch.
			errs = multierr.Append(errs, fmt.Errorf("sync order %s: %w", order.ID, err))
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "orders", len(active)), "delivery sync pass complete")
	return errs
}
