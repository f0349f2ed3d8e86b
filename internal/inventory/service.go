// Package inventory owns the stock and reservation columns on products.
// Reservations are taken with conditional updates so two concurrent orders
// can never both claim the last unit.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

type Service struct {
	logg *logger.Logger
}

func NewService(logg *logger.Logger) (*Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{logg: logg}, nil
}

// Reserve claims qty units of the product inside the caller's transaction.
// Products with NULL stock are unlimited and the call succeeds without
// touching the row. Returns CodeInsufficientStock when fewer than qty units
// remain available.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL AND stock - stock_reserved >= ?", productID, qty).
		Update("stock_reserved", gorm.Expr("stock_reserved + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Zero rows: the product is missing, unlimited, or short on stock.
	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "stock", "stock_reserved").
		First(&product, "id = ?", productID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product for reservation")
	case product.Stock == nil:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock available").
			WithDetails(map[string]any{
				"product_id": productID,
				"requested":  qty,
				"available":  *product.Available(),
			})
	}
}

// Confirm consumes a reservation after payment settles: stock and the
// reservation both drop by qty, floored at zero. Unlimited products are
// untouched.
func (s *Service) Confirm(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL", productID).
		Updates(map[string]any{
			"stock":          gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty),
			"stock_reserved": gorm.Expr("CASE WHEN stock_reserved >= ? THEN stock_reserved - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "confirming reservation")
	}
	return nil
}

// Release returns a reservation to the pool without consuming stock. Used
// when a pending payment is voided. Floors at zero so a double release of
// the same order cannot corrupt the counters.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL", productID).
		Update("stock_reserved", gorm.Expr("CASE WHEN stock_reserved >= ? THEN stock_reserved - ? ELSE 0 END", qty, qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing reservation")
	}
	return nil
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"qty": qty})
	}
	return nil
}
