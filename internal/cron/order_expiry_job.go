package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

const expiryBatchSize = 200

type expiredOrderLister interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	Expire(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type paymentCanceller interface {
	CancelActiveForOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderExpiryJobParams configure the pending order expiry sweep.
type OrderExpiryJobParams struct {
	Logger   *logger.Logger
	Reader   expiredOrderLister
	Orders   orderExpirer
	Payments paymentCanceller
}

// NewOrderExpiryJob builds the cron job that releases holds whose payment
// never arrived.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("expired order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &orderExpiryJob{
		logg:     params.Logger,
		reader:   params.Reader,
		orders:   params.Orders,
		payments: params.Payments,
		now:      time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg     *logger.Logger
	reader   expiredOrderLister
	orders   orderExpirer
	payments paymentCanceller
	now      func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	stale, err := j.reader.ListExpiredPending(ctx, j.now().UTC(), expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query expired pending orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range stale {
		ok, err := j.expireOrder(ctx, order)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *orderExpiryJob) expireOrder(ctx context.Context, order models.Order) (bool, error) {
	claimed, err := j.orders.Expire(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("expire order %s: %w", order.ID, err)
	}
	if !claimed {
		// a payment arrived between the query and the claim
		return false, nil
	}
	if err := j.payments.CancelActiveForOrder(ctx, order.ID); err != nil {
		return true, fmt.Errorf("cancel payment for order %s: %w", order.ID, err)
	}
	return true, nil
}
