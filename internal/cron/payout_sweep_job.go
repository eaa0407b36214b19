package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
)

const payoutSweepBatchSize = 100

// payoutSweepActor attributes sweep-initiated payouts in the event audit trail.
var payoutSweepActor = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type payoutOrderLister interface {
	ListCompletedUnpaid(ctx context.Context, limit int) ([]models.Order, error)
}

type payoutProcessor interface {
	ProcessPayout(ctx context.Context, orderID, actorID uuid.UUID) (decimal.Decimal, error)
}

type PayoutSweepJobParams struct {
	Logger    *logger.Logger
	Orders    payoutOrderLister
	Ledger    payoutProcessor
	BatchSize int
}

func NewPayoutSweepJob(params PayoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = payoutSweepBatchSize
	}
	return &payoutSweepJob{
		logg:  params.Logger,
		repo:  params.Orders,
		sweep: params.Ledger,
		batch: batch,
	}, nil
}

type payoutSweepJob struct {
	logg  *logger.Logger
	repo  payoutOrderLister
	sweep payoutProcessor
	batch int
}

func (j *payoutSweepJob) Name() string { return "payout-sweep" }

func (j *payoutSweepJob) Run(ctx context.Context) error {
	orders, err := j.repo.ListCompletedUnpaid(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list payout-eligible orders: %w", err)
	}

	var paid, skipped, failed int
	total := decimal.Zero
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		earnings, err := j.sweep.ProcessPayout(ctx, order.ID, payoutSweepActor)
		if err != nil {
			// A concurrent payout winning the paid_out guard is expected
			// between the listing and the sweep.
			var domainErr *pkgerrors.Error
			if errors.As(err, &domainErr) && domainErr.Code() == pkgerrors.CodeStateConflict {
				skipped++
				continue
			}
			failed++
			errCtx := j.logg.WithField(ctx, "order_id", order.ID.String())
			j.logg.Error(errCtx, "payout failed", err)
			continue
		}
		paid++
		total = total.Add(earnings)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"eligible":       len(orders),
		"paid":           paid,
		"skipped":        skipped,
		"failed":         failed,
		"total_earnings": total.StringFixed(2),
	})
	j.logg.Info(logCtx, "payout sweep complete")

	if failed > 0 {
		return fmt.Errorf("payout sweep: %d of %d payouts failed", failed, len(orders))
	}
	return nil
}
