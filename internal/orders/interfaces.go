package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	"github.com/kioskly/kiosk-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForStore(ctx context.Context, storeID, id uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	ListStoreOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListKitchenOrders(ctx context.Context, storeID uuid.UUID) ([]models.Order, error)
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)

	// TransitionPayment flips payment_status from expected to the value in
	// updates, returning false when another channel already moved the order.
	TransitionPayment(ctx context.Context, orderID uuid.UUID, expected enums.PaymentStatus, updates map[string]any) (bool, error)

	// UpdateStatusIf moves status only when the current value is one of from.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, updates map[string]any, from ...enums.OrderStatus) (bool, error)

	// SetPaymentDetails stores the gateway reference and QR payload captured
	// at intent creation.
	SetPaymentDetails(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

// OrderList is one page of store orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order
	NextCursor *string
}
