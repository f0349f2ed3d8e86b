// Package kitchen serves the preparation queue: paid orders only, oldest
// first. Staff transitions are conditional updates so a stale screen cannot
// move an order backwards.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/internal/orders"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// Service exposes the kitchen feed and staff transitions.
type Service interface {
	Feed(ctx context.Context, storeID uuid.UUID) ([]orders.OrderDTO, error)
	MarkPreparing(ctx context.Context, storeID, orderID uuid.UUID) (*orders.OrderDTO, error)
	MarkCompleted(ctx context.Context, storeID, orderID uuid.UUID) (*orders.OrderDTO, error)
}

type service struct {
	repo orders.Repository
	logg *logger.Logger
}

// NewService builds the kitchen service.
func NewService(repo orders.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Feed(ctx context.Context, storeID uuid.UUID) ([]orders.OrderDTO, error) {
	rows, err := s.repo.ListKitchenOrders(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing kitchen orders")
	}
	feed := make([]orders.OrderDTO, 0, len(rows))
	for i := range rows {
		feed = append(feed, *orders.ToDTO(&rows[i]))
	}
	return feed, nil
}

func (s *service) MarkPreparing(ctx context.Context, storeID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return s.transition(ctx, storeID, orderID, enums.OrderStatusPreparing, nil,
		enums.OrderStatusActive)
}

func (s *service) MarkCompleted(ctx context.Context, storeID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	now := time.Now().UTC()
	return s.transition(ctx, storeID, orderID, enums.OrderStatusCompleted,
		map[string]any{"completed_at": now},
		enums.OrderStatusPreparing, enums.OrderStatusActive)
}

func (s *service) transition(ctx context.Context, storeID, orderID uuid.UUID, to enums.OrderStatus, updates map[string]any, from ...enums.OrderStatus) (*orders.OrderDTO, error) {
	order, err := s.repo.FindForStore(ctx, storeID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	moved, err := s.repo.UpdateStatusIf(ctx, orderID, to, updates, from...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a state that allows this transition").
			WithDetails(map[string]any{"status": order.Status, "target": to})
	}

	refreshed, err := s.repo.FindForStore(ctx, storeID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
	}
	return orders.ToDTO(refreshed), nil
}
