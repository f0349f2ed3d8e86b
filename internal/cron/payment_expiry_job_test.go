package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

type fakePendingReader struct {
	rows       []models.Order
	err        error
	lastCutoff time.Time
}

func (f *fakePendingReader) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.lastCutoff = cutoff
	return f.rows, f.err
}

type fakeExpirer struct {
	expired []uuid.UUID
	failOn  uuid.UUID
}

func (f *fakeExpirer) Expire(ctx context.Context, order *models.Order) error {
	if order.ID == f.failOn {
		return errors.New("gateway timeout")
	}
	f.expired = append(f.expired, order.ID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func staleOrder() models.Order {
	return models.Order{
		ID:            uuid.New(),
		StoreID:       uuid.New(),
		Status:        enums.OrderStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodPix,
	}
}

func TestPaymentExpiryJobExpiresStaleOrders(t *testing.T) {
	first := staleOrder()
	second := staleOrder()
	reader := &fakePendingReader{rows: []models.Order{first, second}}
	expirer := &fakeExpirer{}

	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger: testLogger(),
		Orders: reader,
		Engine: expirer,
		Window: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expected 2 expirations got %d", len(expirer.expired))
	}
	if age := time.Since(reader.lastCutoff); age < 14*time.Minute || age > 16*time.Minute {
		t.Fatalf("cutoff not around 15 minutes ago: %v", reader.lastCutoff)
	}
}

func TestPaymentExpiryJobContinuesPastFailures(t *testing.T) {
	first := staleOrder()
	second := staleOrder()
	reader := &fakePendingReader{rows: []models.Order{first, second}}
	expirer := &fakeExpirer{failOn: first.ID}

	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger: testLogger(),
		Orders: reader,
		Engine: expirer,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != second.ID {
		t.Fatalf("remaining orders must still expire, got %v", expirer.expired)
	}
}

func TestPaymentExpiryJobPropagatesQueryErrors(t *testing.T) {
	reader := &fakePendingReader{err: errors.New("db down")}
	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger: testLogger(),
		Orders: reader,
		Engine: &fakeExpirer{},
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
