// Package orders creates and reads kiosk orders. Creation reserves stock and
// persists the order in one transaction; the gateway charge is created after
// commit and a failure there voids the order and returns the reservations.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/internal/gateway"
	"github.com/kioskly/kiosk-backend/internal/products"
	"github.com/kioskly/kiosk-backend/internal/stores"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryService interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service exposes order operations.
type Service interface {
	CreateOrder(ctx context.Context, store *models.Store, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*OrderPage, error)
}

// Params wires the order service dependencies.
type Params struct {
	Client    txRunner
	Repo      Repository
	Products  products.Repository
	Inventory inventoryService
	Gateway   gateway.Adapter
	Stores    stores.Service
	Logger    *logger.Logger
}

type service struct {
	client    txRunner
	repo      Repository
	products  products.Repository
	inventory inventoryService
	gateway   gateway.Adapter
	stores    stores.Service
	logg      *logger.Logger
}

// NewService builds the order service.
func NewService(p Params) (Service, error) {
	switch {
	case p.Client == nil:
		return nil, fmt.Errorf("db client is required")
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository is required")
	case p.Products == nil:
		return nil, fmt.Errorf("products repository is required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory service is required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("gateway adapter is required")
	case p.Stores == nil:
		return nil, fmt.Errorf("stores service is required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		client:    p.Client,
		repo:      p.Repo,
		products:  p.Products,
		inventory: p.Inventory,
		gateway:   p.Gateway,
		stores:    p.Stores,
		logg:      p.Logger,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, store *models.Store, input CreateOrderInput) (*OrderDTO, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	catalog, err := s.loadCatalog(ctx, store.ID, input.Items)
	if err != nil {
		return nil, err
	}

	order := buildOrder(store.ID, input, catalog)

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range input.Items {
			if err := s.inventory.Reserve(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		_, err := s.repo.WithTx(tx).Create(ctx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(s.logg.WithStoreID(ctx, store.ID.String()), order.ID.String())

	if err := s.initiatePayment(ctx, store, order); err != nil {
		s.voidAfterGatewayFailure(ctx, order)
		return nil, err
	}

	created, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading created order")
	}
	return ToDTO(created), nil
}

func (s *service) GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForStore(ctx, storeID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return ToDTO(order), nil
}

func (s *service) ListOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	list, err := s.repo.ListStoreOrders(ctx, storeID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	page := &OrderPage{Orders: []OrderDTO{}, NextCursor: list.NextCursor}
	for i := range list.Orders {
		page.Orders = append(page.Orders, *ToDTO(&list.Orders[i]))
	}
	return page, nil
}

func (s *service) loadCatalog(ctx context.Context, storeID uuid.UUID, items []CreateOrderItemInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	rows, err := s.products.ListForStoreByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}

	catalog := make(map[uuid.UUID]models.Product, len(rows))
	for _, product := range rows {
		catalog[product.ID] = product
	}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
	}
	return catalog, nil
}

func buildOrder(storeID uuid.UUID, input CreateOrderInput, catalog map[uuid.UUID]models.Product) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerName:  input.CustomerName,
		Status:        enums.OrderStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: input.PaymentMethod,
		Observation:   input.Observation,
	}
	for _, item := range input.Items {
		product := catalog[item.ProductID]
		lineTotal := product.PriceCents * item.Qty
		order.Items = append(order.Items, models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            item.Qty,
			TotalCents:     lineTotal,
		})
		order.TotalCents += lineTotal
	}
	return order
}

func (s *service) initiatePayment(ctx context.Context, store *models.Store, order *models.Order) error {
	creds, err := s.stores.Credentials(ctx, store)
	if err != nil {
		return err
	}

	initiation, err := s.gateway.Initiate(ctx, creds, gateway.InitiateParams{
		OrderID:      order.ID,
		Method:       order.PaymentMethod,
		AmountCents:  order.TotalCents,
		Description:  fmt.Sprintf("order for %s", order.CustomerName),
		CustomerName: order.CustomerName,
	})
	if err != nil {
		return err
	}

	updates := map[string]any{"payment_ref": initiation.PaymentRef}
	if initiation.PixQRText != nil {
		updates["pix_qr_text"] = *initiation.PixQRText
	}
	if initiation.PixQRImage != nil {
		updates["pix_qr_image"] = *initiation.PixQRImage
	}
	if err := s.repo.SetPaymentDetails(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing payment details")
	}
	return nil
}

// voidAfterGatewayFailure cancels the freshly created order and returns its
// reservations. The CAS on payment_status keeps this safe against a webhook
// racing in between.
func (s *service) voidAfterGatewayFailure(ctx context.Context, order *models.Order) {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		reason := enums.CancelReasonCanceledBySystem
		moved, err := s.repo.WithTx(tx).TransitionPayment(ctx, order.ID, enums.PaymentStatusPending, map[string]any{
			"payment_status": enums.PaymentStatusCanceled,
			"status":         enums.OrderStatusCanceled,
			"cancel_reason":  reason,
			"canceled_at":    now,
		})
		if err != nil {
			return err
		}
		if !moved {
			s.logg.Warn(ctx, "order moved before gateway-failure void, leaving as is")
			return nil
		}
		for _, item := range order.Items {
			if err := s.inventory.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "voiding order after gateway failure", err)
	}
}

func validateInput(input CreateOrderInput) error {
	if input.CustomerName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID, "qty": item.Qty})
		}
		if seen[item.ProductID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		seen[item.ProductID] = true
	}
	return nil
}
