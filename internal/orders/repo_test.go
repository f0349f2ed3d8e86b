package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	"github.com/kioskly/kiosk-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Each test gets its own named in-memory database so cross-test rows
	// cannot leak into table-wide queries.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stores := `
CREATE TABLE IF NOT EXISTS stores (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  mp_access_token TEXT,
  mp_device_id TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_ref TEXT,
  settled_payment_id TEXT,
  cancel_reason TEXT,
  total_cents INTEGER NOT NULL,
  observation TEXT,
  pix_qr_text TEXT,
  pix_qr_image TEXT,
  paid_at DATETIME,
  canceled_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(stores).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderLineItems).Error)
	return db
}

func newTestStore(t *testing.T, db *gorm.DB) *models.Store {
	t.Helper()

	store := &models.Store{
		ID:     uuid.New(),
		Name:   "Sushi Corner",
		Slug:   "sushi-corner-" + uuid.NewString()[:8],
		Active: true,
	}
	require.NoError(t, db.Create(store).Error)
	return store
}

func seedOrder(t *testing.T, db *gorm.DB, storeID uuid.UUID, status enums.OrderStatus, payment enums.PaymentStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerName:  "Ana",
		Status:        status,
		PaymentStatus: payment,
		PaymentMethod: enums.PaymentMethodPix,
		TotalCents:    1500,
		CreatedAt:     created,
		Items: []models.OrderLineItem{
			{
				ID:             uuid.New(),
				ProductID:      uuid.New(),
				Name:           "temaki",
				UnitPriceCents: 1500,
				Qty:            1,
				TotalCents:     1500,
			},
		},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestCreateAndFindForStore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)

	order := &models.Order{
		ID:            uuid.New(),
		StoreID:       store.ID,
		CustomerName:  "Bruno",
		Status:        enums.OrderStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodCardTerminal,
		TotalCents:    4200,
		Items: []models.OrderLineItem{
			{ID: uuid.New(), ProductID: uuid.New(), Name: "combo", UnitPriceCents: 2100, Qty: 2, TotalCents: 4200},
		},
	}
	_, err := repo.Create(context.Background(), order)
	require.NoError(t, err)

	found, err := repo.FindForStore(context.Background(), store.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "combo", found.Items[0].Name)

	_, err = repo.FindForStore(context.Background(), uuid.New(), order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindByPaymentRef(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)

	order := seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, time.Now().UTC())
	ref := "12345678" + uuid.NewString()[:8]
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_ref", ref).Error)

	found, err := repo.FindByPaymentRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByPaymentRef(context.Background(), "missing-ref")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListStoreOrdersPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	oldest := seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, base)
	middle := seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, base.Add(time.Minute))
	newest := seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, base.Add(2*time.Minute))

	page, err := repo.ListStoreOrders(context.Background(), store.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, newest.ID, page.Orders[0].ID)
	assert.Equal(t, middle.ID, page.Orders[1].ID)
	require.NotNil(t, page.NextCursor)

	rest, err := repo.ListStoreOrders(context.Background(), store.ID, pagination.Params{Limit: 2, Cursor: *page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Equal(t, oldest.ID, rest.Orders[0].ID)
	assert.Nil(t, rest.NextCursor)
}

func TestListKitchenOrdersFiltersAndSorts(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	first := seedOrder(t, db, store.ID, enums.OrderStatusPreparing, enums.PaymentStatusPaid, base)
	second := seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, base.Add(time.Minute))
	seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, base)
	seedOrder(t, db, store.ID, enums.OrderStatusCompleted, enums.PaymentStatusPaid, base)
	seedOrder(t, db, uuid.New(), enums.OrderStatusActive, enums.PaymentStatusPaid, base)

	feed, err := repo.ListKitchenOrders(context.Background(), store.ID)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, first.ID, feed[0].ID)
	assert.Equal(t, second.ID, feed[1].ID)
	require.Len(t, feed[0].Items, 1)
}

func TestFindPendingPaymentBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)

	cutoff := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stale := seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, cutoff.Add(-time.Hour))
	seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, cutoff.Add(time.Minute))
	seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, cutoff.Add(-time.Hour))

	rows, err := repo.FindPendingPaymentBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestTransitionPaymentIsConditional(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)
	order := seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, time.Now().UTC())

	paidAt := time.Now().UTC()
	updates := map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"status":         enums.OrderStatusActive,
		"paid_at":        paidAt,
	}

	moved, err := repo.TransitionPayment(context.Background(), order.ID, enums.PaymentStatusPending, updates)
	require.NoError(t, err)
	assert.True(t, moved)

	again, err := repo.TransitionPayment(context.Background(), order.ID, enums.PaymentStatusPending, updates)
	require.NoError(t, err)
	assert.False(t, again)

	found, err := repo.FindForStore(context.Background(), store.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, found.PaymentStatus)
	assert.Equal(t, enums.OrderStatusActive, found.Status)
	require.NotNil(t, found.PaidAt)
}

func TestUpdateStatusIfRequiresSourceStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)
	order := seedOrder(t, db, store.ID, enums.OrderStatusActive, enums.PaymentStatusPaid, time.Now().UTC())

	moved, err := repo.UpdateStatusIf(context.Background(), order.ID, enums.OrderStatusPreparing, nil, enums.OrderStatusActive)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.UpdateStatusIf(context.Background(), order.ID, enums.OrderStatusPreparing, nil, enums.OrderStatusActive)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestSetPaymentDetails(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	store := newTestStore(t, db)
	order := seedOrder(t, db, store.ID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending, time.Now().UTC())

	err := repo.SetPaymentDetails(context.Background(), order.ID, map[string]any{
		"payment_ref": "987654",
		"pix_qr_text": "00020126pix-code",
	})
	require.NoError(t, err)

	found, err := repo.FindForStore(context.Background(), store.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.PaymentRef)
	assert.Equal(t, "987654", *found.PaymentRef)
	require.NotNil(t, found.PixQRText)
	assert.Equal(t, "00020126pix-code", *found.PixQRText)
}
