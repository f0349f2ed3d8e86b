package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

type pendingOrderReader interface {
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type paymentExpirer interface {
	Expire(ctx context.Context, order *models.Order) error
}

// PaymentExpiryJobParams configure the expiry sweep.
type PaymentExpiryJobParams struct {
	Logger *logger.Logger
	Orders pendingOrderReader
	Engine paymentExpirer
	Window time.Duration
}

type paymentExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderReader
	engine paymentExpirer
	window time.Duration
	now    func() time.Time
}

// NewPaymentExpiryJob builds the job that voids orders whose payment window
// has lapsed. A webhook landing mid-sweep wins: the engine's conditional
// transition leaves already-settled orders untouched.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader is required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("payment engine is required")
	}
	window := params.Window
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &paymentExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		engine: params.Engine,
		window: window,
		now:    time.Now,
	}, nil
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	stale, err := j.orders.FindPendingPaymentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	expired := 0
	for i := range stale {
		if err := j.engine.Expire(ctx, &stale[i]); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", stale[i].ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"candidates": len(stale), "expired": expired})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return multierr.Combine(errs...)
}
