package kitchen

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/internal/orders"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/pagination"
)

type stubKitchenRepo struct {
	order       *models.Order
	feed        []models.Order
	moved       bool
	lastUpdates map[string]any
	lastFrom    []enums.OrderStatus
}

func (s *stubKitchenRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubKitchenRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) FindForStore(ctx context.Context, storeID, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id || s.order.StoreID != storeID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubKitchenRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) ListStoreOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) ListKitchenOrders(ctx context.Context, storeID uuid.UUID) ([]models.Order, error) {
	return s.feed, nil
}

func (s *stubKitchenRepo) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) TransitionPayment(ctx context.Context, orderID uuid.UUID, expected enums.PaymentStatus, updates map[string]any) (bool, error) {
	panic("not implemented")
}

func (s *stubKitchenRepo) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, updates map[string]any, from ...enums.OrderStatus) (bool, error) {
	s.lastUpdates = updates
	s.lastFrom = from
	if !s.moved {
		return false, nil
	}
	s.order.Status = to
	if ts, ok := updates["completed_at"].(time.Time); ok {
		s.order.CompletedAt = &ts
	}
	return true, nil
}

func (s *stubKitchenRepo) SetPaymentDetails(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	panic("not implemented")
}

func paidOrder(storeID uuid.UUID, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerName:  "Iris",
		Status:        status,
		PaymentStatus: enums.PaymentStatusPaid,
		PaymentMethod: enums.PaymentMethodPix,
		TotalCents:    1200,
	}
}

func newKitchenService(t *testing.T, repo orders.Repository) Service {
	t.Helper()

	svc, err := NewService(repo, logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestFeedMapsOrders(t *testing.T) {
	storeID := uuid.New()
	repo := &stubKitchenRepo{feed: []models.Order{
		*paidOrder(storeID, enums.OrderStatusActive),
		*paidOrder(storeID, enums.OrderStatusPreparing),
	}}
	svc := newKitchenService(t, repo)

	feed, err := svc.Feed(context.Background(), storeID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 orders got %d", len(feed))
	}
}

func TestMarkPreparingMovesActiveOrder(t *testing.T) {
	storeID := uuid.New()
	order := paidOrder(storeID, enums.OrderStatusActive)
	repo := &stubKitchenRepo{order: order, moved: true}
	svc := newKitchenService(t, repo)

	dto, err := svc.MarkPreparing(context.Background(), storeID, order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusPreparing {
		t.Fatalf("expected preparing got %s", dto.Status)
	}
	if len(repo.lastFrom) != 1 || repo.lastFrom[0] != enums.OrderStatusActive {
		t.Fatalf("unexpected source statuses %v", repo.lastFrom)
	}
}

func TestMarkPreparingRequiresPaidOrder(t *testing.T) {
	storeID := uuid.New()
	order := paidOrder(storeID, enums.OrderStatusPendingPayment)
	order.PaymentStatus = enums.PaymentStatusPending
	repo := &stubKitchenRepo{order: order, moved: true}
	svc := newKitchenService(t, repo)

	_, err := svc.MarkPreparing(context.Background(), storeID, order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestMarkCompletedStampsCompletion(t *testing.T) {
	storeID := uuid.New()
	order := paidOrder(storeID, enums.OrderStatusPreparing)
	repo := &stubKitchenRepo{order: order, moved: true}
	svc := newKitchenService(t, repo)

	dto, err := svc.MarkCompleted(context.Background(), storeID, order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected completed got %s", dto.Status)
	}
	if dto.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if _, ok := repo.lastUpdates["completed_at"]; !ok {
		t.Fatalf("expected completed_at in updates, got %v", repo.lastUpdates)
	}
}

func TestTransitionLostRace(t *testing.T) {
	storeID := uuid.New()
	order := paidOrder(storeID, enums.OrderStatusCompleted)
	repo := &stubKitchenRepo{order: order, moved: false}
	svc := newKitchenService(t, repo)

	_, err := svc.MarkPreparing(context.Background(), storeID, order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := newKitchenService(t, &stubKitchenRepo{})

	_, err := svc.MarkPreparing(context.Background(), uuid.New(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
