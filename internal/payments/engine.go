// Package payments reconciles order payment state against the gateway. All
// delivery channels (client polling, webhooks, IPN, the expiry sweep) feed
// the same transition function, and every terminal transition is a
// compare-and-swap on payment_status, so redundant or racing deliveries
// converge on one outcome.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/internal/gateway"
	"github.com/kioskly/kiosk-backend/internal/orders"
	"github.com/kioskly/kiosk-backend/internal/stores"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/metrics"
)

// Triggers identify which channel observed the gateway outcome.
const (
	TriggerPoll         = "poll"
	TriggerWebhook      = "webhook"
	TriggerIPN          = "ipn"
	TriggerSweep        = "sweep"
	TriggerClientCancel = "client_cancel"
)

const ipnTopicPayment = "payment"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryService interface {
	Confirm(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// StateDTO is the payment view returned to polling kiosks.
type StateDTO struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CancelReason  *enums.CancelReason `json:"cancel_reason,omitempty"`
	Message       string              `json:"message"`
	PixQRText     *string             `json:"pix_qr_text,omitempty"`
	PixQRImage    *string             `json:"pix_qr_image,omitempty"`
}

// Engine drives payment reconciliation.
type Engine interface {
	Evaluate(ctx context.Context, store *models.Store, orderID uuid.UUID) (*StateDTO, error)
	HandleWebhook(ctx context.Context, store *models.Store, providerPaymentID string) error
	HandleIPN(ctx context.Context, store *models.Store, resourceID, topic string) error
	CancelByClient(ctx context.Context, store *models.Store, orderID uuid.UUID) (*StateDTO, error)
	Expire(ctx context.Context, order *models.Order) error
}

// Params wires the engine dependencies.
type Params struct {
	Client    txRunner
	Orders    orders.Repository
	Inventory inventoryService
	Gateway   gateway.Adapter
	Stores    stores.Service
	Cache     Cache
	Guard     DedupGuard
	Metrics   *metrics.PaymentMetrics
	Logger    *logger.Logger
}

type engine struct {
	client    txRunner
	orders    orders.Repository
	inventory inventoryService
	gateway   gateway.Adapter
	stores    stores.Service
	cache     Cache
	guard     DedupGuard
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewEngine builds the reconciliation engine.
func NewEngine(p Params) (Engine, error) {
	switch {
	case p.Client == nil:
		return nil, fmt.Errorf("db client is required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository is required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory service is required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("gateway adapter is required")
	case p.Stores == nil:
		return nil, fmt.Errorf("stores service is required")
	case p.Cache == nil:
		return nil, fmt.Errorf("payment cache is required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if p.Guard == nil {
		p.Guard = NewNoopGuard()
	}
	return &engine{
		client:    p.Client,
		orders:    p.Orders,
		inventory: p.Inventory,
		gateway:   p.Gateway,
		stores:    p.Stores,
		cache:     p.Cache,
		guard:     p.Guard,
		metrics:   p.Metrics,
		logg:      p.Logger,
	}, nil
}

// Evaluate re-checks a pending order against the gateway and applies the
// outcome. Gateway unavailability and ambiguous states are swallowed into
// "still pending" so the kiosk keeps polling.
func (e *engine) Evaluate(ctx context.Context, store *models.Store, orderID uuid.UUID) (*StateDTO, error) {
	order, err := e.loadOrder(ctx, store.ID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsTerminal() {
		return e.state(order, ""), nil
	}
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return e.state(order, ""), nil
	}

	ctx = e.logg.WithOrderID(e.logg.WithStoreID(ctx, store.ID.String()), order.ID.String())

	result, err := e.observe(ctx, store, order)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeGateway) || pkgerrors.HasCode(err, pkgerrors.CodeAmbiguousGateway) {
			e.logg.Warn(ctx, "gateway lookup failed, order stays pending")
			return e.state(order, ""), nil
		}
		return nil, err
	}

	if err := e.apply(ctx, order, result, TriggerPoll); err != nil {
		return nil, err
	}

	refreshed, err := e.loadOrder(ctx, store.ID, orderID)
	if err != nil {
		return nil, err
	}
	return e.state(refreshed, result.Reason), nil
}

// HandleWebhook processes a payment webhook delivery. The payment id is the
// provider's; the order is located through the payment's external reference.
func (e *engine) HandleWebhook(ctx context.Context, store *models.Store, providerPaymentID string) error {
	return e.handleNotification(ctx, store, providerPaymentID, "mp-webhook", TriggerWebhook)
}

// HandleIPN processes an IPN delivery. Topics other than payment are ignored.
func (e *engine) HandleIPN(ctx context.Context, store *models.Store, resourceID, topic string) error {
	if topic != ipnTopicPayment {
		e.logg.Debug(ctx, fmt.Sprintf("ignoring ipn topic %q", topic))
		return nil
	}
	return e.handleNotification(ctx, store, resourceID, "mp-ipn", TriggerIPN)
}

func (e *engine) handleNotification(ctx context.Context, store *models.Store, providerPaymentID, dedupScope, trigger string) error {
	if providerPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	ctx = e.logg.WithStoreID(ctx, store.ID.String())

	marked := false
	first, err := e.guard.CheckAndMark(ctx, dedupScope, providerPaymentID)
	switch {
	case err != nil:
		e.logg.Warn(ctx, "dedup guard unavailable, processing anyway")
	case !first:
		e.logg.Debug(ctx, "duplicate notification suppressed")
		return nil
	default:
		marked = true
	}

	// The mark only sticks once a terminal outcome was applied. The provider
	// reuses one payment id for the created (still pending) and updated
	// (approved) deliveries, so a mark left behind by the first would
	// suppress the approval.
	keep := false
	defer func() {
		if marked && !keep {
			if err := e.guard.Unmark(ctx, dedupScope, providerPaymentID); err != nil {
				e.logg.Warn(ctx, "dedup guard unmark failed")
			}
		}
	}()

	result, err := e.notificationResult(ctx, store, providerPaymentID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			e.logg.Warn(ctx, "notification for unknown payment, dropping")
			return nil
		}
		return err
	}

	order, err := e.locateOrder(ctx, store, result, providerPaymentID)
	if err != nil {
		return err
	}
	if order == nil {
		e.logg.Warn(ctx, "no order matches notification, dropping")
		return nil
	}

	ctx = e.logg.WithOrderID(ctx, order.ID.String())
	if err := e.apply(ctx, order, result, trigger); err != nil {
		return err
	}
	keep = result.Status != gateway.StatusPending
	return nil
}

// notificationResult resolves the payment state for a notification, serving
// a cached terminal snapshot before asking the gateway.
func (e *engine) notificationResult(ctx context.Context, store *models.Store, providerPaymentID string) (*gateway.StatusResult, error) {
	snap, err := e.cache.Get(ctx, providerPaymentID)
	if err != nil {
		e.logg.Warn(ctx, "payment cache read failed")
	}
	if snap != nil && snap.Status != gateway.StatusPending {
		return &gateway.StatusResult{
			Status:            snap.Status,
			Reason:            snap.Reason,
			ProviderPaymentID: snap.ProviderPaymentID,
			ExternalReference: snap.ExternalReference,
		}, nil
	}

	creds, err := e.stores.Credentials(ctx, store)
	if err != nil {
		return nil, err
	}
	return e.gateway.LookupPayment(ctx, creds, providerPaymentID)
}

// CancelByClient voids a still-pending payment at the customer's request. A
// race with an approval is not an error: the caller gets the converged state.
func (e *engine) CancelByClient(ctx context.Context, store *models.Store, orderID uuid.UUID) (*StateDTO, error) {
	order, err := e.loadOrder(ctx, store.ID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	ctx = e.logg.WithOrderID(e.logg.WithStoreID(ctx, store.ID.String()), order.ID.String())
	e.cancelUpstream(ctx, store, order)

	if err := e.void(ctx, order, enums.PaymentStatusCanceled, enums.CancelReasonCanceledByUser, TriggerClientCancel); err != nil {
		return nil, err
	}

	refreshed, err := e.loadOrder(ctx, store.ID, orderID)
	if err != nil {
		return nil, err
	}
	return e.state(refreshed, ""), nil
}

// Expire voids an order whose payment window has lapsed. Called by the sweep
// job; the CAS keeps it safe against a webhook settling the order mid-sweep.
func (e *engine) Expire(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	ctx = e.logg.WithOrderID(e.logg.WithStoreID(ctx, order.StoreID.String()), order.ID.String())

	store, err := e.stores.Get(ctx, order.StoreID)
	if err == nil {
		e.cancelUpstream(ctx, store, order)
	} else {
		e.logg.Warn(ctx, "store unavailable during expiry, skipping upstream cancel")
	}

	return e.void(ctx, order, enums.PaymentStatusCanceled, enums.CancelReasonTimeout, TriggerSweep)
}

// observe returns the freshest known gateway state, preferring a cached
// terminal snapshot over a live lookup.
func (e *engine) observe(ctx context.Context, store *models.Store, order *models.Order) (*gateway.StatusResult, error) {
	snap, err := e.cache.Get(ctx, *order.PaymentRef)
	if err != nil {
		e.logg.Warn(ctx, "payment cache read failed")
	}
	if snap != nil && snap.Status != gateway.StatusPending {
		return &gateway.StatusResult{
			Status:            snap.Status,
			Reason:            snap.Reason,
			ProviderPaymentID: snap.ProviderPaymentID,
			ExternalReference: snap.ExternalReference,
		}, nil
	}

	creds, err := e.stores.Credentials(ctx, store)
	if err != nil {
		return nil, err
	}
	return e.gateway.Lookup(ctx, creds, *order.PaymentRef, order.PaymentMethod, order.ID.String())
}

// apply routes one gateway observation into the matching CAS transition.
func (e *engine) apply(ctx context.Context, order *models.Order, result *gateway.StatusResult, trigger string) error {
	switch result.Status {
	case gateway.StatusApproved:
		return e.settle(ctx, order, result, trigger)
	case gateway.StatusRejected:
		if err := e.void(ctx, order, enums.PaymentStatusRejected, enums.CancelReasonRejectedByGateway, trigger); err != nil {
			return err
		}
		e.cacheResult(ctx, order, result)
		return nil
	case gateway.StatusCanceled:
		if err := e.void(ctx, order, enums.PaymentStatusCanceled, enums.CancelReasonCanceledBySystem, trigger); err != nil {
			return err
		}
		e.cacheResult(ctx, order, result)
		return nil
	default:
		return nil
	}
}

func (e *engine) settle(ctx context.Context, order *models.Order, result *gateway.StatusResult, trigger string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"status":         enums.OrderStatusActive,
		"paid_at":        now,
	}
	if result.ProviderPaymentID != "" {
		updates["settled_payment_id"] = result.ProviderPaymentID
	}

	var moved bool
	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		moved, err = e.orders.WithTx(tx).TransitionPayment(ctx, order.ID, enums.PaymentStatusPending, updates)
		if err != nil || !moved {
			return err
		}
		for _, item := range order.Items {
			if err := e.inventory.Confirm(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling payment")
	}
	if !moved {
		e.metrics.IncDuplicate()
		e.logg.Warn(ctx, fmt.Sprintf("duplicate approval via %s, order already terminal", trigger))
		return nil
	}

	e.metrics.IncTransition(string(enums.PaymentStatusPaid), trigger)
	e.logg.Info(ctx, "payment settled")
	e.cacheResult(ctx, order, result)
	e.clearTerminalQueue(ctx, order)
	return nil
}

func (e *engine) void(ctx context.Context, order *models.Order, to enums.PaymentStatus, reason enums.CancelReason, trigger string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"payment_status": to,
		"status":         enums.OrderStatusCanceled,
		"cancel_reason":  reason,
		"canceled_at":    now,
	}

	var moved bool
	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		moved, err = e.orders.WithTx(tx).TransitionPayment(ctx, order.ID, enums.PaymentStatusPending, updates)
		if err != nil || !moved {
			return err
		}
		for _, item := range order.Items {
			if err := e.inventory.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "voiding payment")
	}
	if !moved {
		e.metrics.IncDuplicate()
		e.logg.Warn(ctx, fmt.Sprintf("duplicate void via %s, order already terminal", trigger))
		return nil
	}

	e.metrics.IncTransition(string(to), trigger)
	e.logg.Info(ctx, fmt.Sprintf("payment voided (%s)", reason))
	return nil
}

// cancelUpstream best-effort cancels the provider-side charge. Failures are
// logged only; local state is authoritative.
func (e *engine) cancelUpstream(ctx context.Context, store *models.Store, order *models.Order) {
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return
	}
	creds, err := e.stores.Credentials(ctx, store)
	if err != nil {
		e.logg.Warn(ctx, "no credentials for upstream cancel")
		return
	}
	if err := e.gateway.CancelPending(ctx, creds, *order.PaymentRef, order.PaymentMethod); err != nil {
		e.logg.Warn(ctx, "upstream cancel failed, continuing with local void")
	}
}

// clearTerminalQueue drops every stale intent left on the Point device after
// a settlement, including intents queued by other abandoned orders. Best
// effort only.
func (e *engine) clearTerminalQueue(ctx context.Context, order *models.Order) {
	if order.PaymentMethod != enums.PaymentMethodCardTerminal {
		return
	}
	store, err := e.stores.Get(ctx, order.StoreID)
	if err != nil {
		return
	}
	creds, err := e.stores.Credentials(ctx, store)
	if err != nil {
		e.logg.Warn(ctx, "no credentials for device queue clear")
		return
	}
	cleared, err := e.gateway.ClearPendingQueue(ctx, creds)
	if err != nil {
		e.logg.Warn(ctx, "device queue clear failed")
		return
	}
	if cleared > 0 {
		e.logg.Info(ctx, fmt.Sprintf("cleared %d stale intent(s) from device queue", cleared))
	}
}

// cacheResult stores the observation under every reference a later delivery
// may carry: the order's payment ref (intent id for terminals) and the
// provider payment id webhooks are keyed by.
func (e *engine) cacheResult(ctx context.Context, order *models.Order, result *gateway.StatusResult) {
	snap := Snapshot{
		Status:            result.Status,
		Reason:            result.Reason,
		ProviderPaymentID: result.ProviderPaymentID,
		ExternalReference: result.ExternalReference,
		ObservedAt:        time.Now().UTC(),
	}
	if snap.ExternalReference == "" {
		snap.ExternalReference = order.ID.String()
	}

	keys := make([]string, 0, 2)
	if order.PaymentRef != nil && *order.PaymentRef != "" {
		keys = append(keys, *order.PaymentRef)
	}
	if result.ProviderPaymentID != "" && (len(keys) == 0 || keys[0] != result.ProviderPaymentID) {
		keys = append(keys, result.ProviderPaymentID)
	}
	for _, key := range keys {
		if err := e.cache.Put(ctx, key, snap); err != nil {
			e.logg.Warn(ctx, "payment cache write failed")
		}
	}
}

func (e *engine) locateOrder(ctx context.Context, store *models.Store, result *gateway.StatusResult, providerPaymentID string) (*models.Order, error) {
	if result.ExternalReference != "" {
		if orderID, err := uuid.Parse(result.ExternalReference); err == nil {
			order, err := e.orders.FindByID(ctx, orderID)
			if err == nil {
				if order.StoreID != store.ID {
					e.logg.Warn(ctx, "notification store does not own the referenced order, dropping")
					return nil, nil
				}
				return order, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by reference")
			}
		}
	}

	order, err := e.orders.FindByPaymentRef(ctx, providerPaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by payment ref")
	}
	if order.StoreID != store.ID {
		e.logg.Warn(ctx, "notification store does not own the referenced order, dropping")
		return nil, nil
	}
	return order, nil
}

func (e *engine) loadOrder(ctx context.Context, storeID, orderID uuid.UUID) (*models.Order, error) {
	order, err := e.orders.FindForStore(ctx, storeID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (e *engine) state(order *models.Order, liveReason string) *StateDTO {
	dto := &StateDTO{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		CancelReason:  order.CancelReason,
		PixQRText:     order.PixQRText,
		PixQRImage:    order.PixQRImage,
	}
	dto.Message = stateMessage(order, liveReason)
	return dto
}

func stateMessage(order *models.Order, liveReason string) string {
	switch order.PaymentStatus {
	case enums.PaymentStatusPaid:
		return "payment approved"
	case enums.PaymentStatusPending:
		return "waiting for payment"
	}
	if liveReason != "" {
		return FailureMessage(liveReason)
	}
	if order.CancelReason != nil {
		switch *order.CancelReason {
		case enums.CancelReasonTimeout:
			return FailureMessage("expired")
		case enums.CancelReasonCanceledByUser:
			return "payment canceled"
		}
	}
	return genericFailureMessage
}
