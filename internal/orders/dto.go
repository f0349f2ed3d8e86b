package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/pkg/db/models"
	"github.com/kioskly/kiosk-backend/pkg/enums"
)

// CreateOrderInput is the validated order creation payload.
type CreateOrderInput struct {
	CustomerName  string
	PaymentMethod enums.PaymentMethod
	Observation   *string
	Items         []CreateOrderItemInput
}

// CreateOrderItemInput selects one product and quantity.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Qty       int
}

// OrderDTO is the API-facing order shape.
type OrderDTO struct {
	ID            uuid.UUID           `json:"id"`
	StoreID       uuid.UUID           `json:"store_id"`
	CustomerName  string              `json:"customer_name"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CancelReason  *enums.CancelReason `json:"cancel_reason,omitempty"`
	TotalCents    int                 `json:"total_cents"`
	Observation   *string             `json:"observation,omitempty"`
	PixQRText     *string             `json:"pix_qr_text,omitempty"`
	PixQRImage    *string             `json:"pix_qr_image,omitempty"`
	Items         []OrderItemDTO      `json:"items"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CanceledAt    *time.Time          `json:"canceled_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderItemDTO is one snapshotted line item.
type OrderItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	TotalCents     int       `json:"total_cents"`
}

// OrderPage is one page of orders for history listings.
type OrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// ToDTO maps the persisted order onto the API shape.
func ToDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:            order.ID,
		StoreID:       order.StoreID,
		CustomerName:  order.CustomerName,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		CancelReason:  order.CancelReason,
		TotalCents:    order.TotalCents,
		Observation:   order.Observation,
		PixQRText:     order.PixQRText,
		PixQRImage:    order.PixQRImage,
		PaidAt:        order.PaidAt,
		CanceledAt:    order.CanceledAt,
		CompletedAt:   order.CompletedAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return dto
}
