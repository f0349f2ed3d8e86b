package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/pkg/enums"
)

// Order is the persisted kiosk order. PaymentStatus is the reconciliation
// guard: every terminal transition is a conditional update keyed on the
// previous value, so exactly one of confirm/release fires per order no matter
// how many channels observe the gateway outcome.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending_payment'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentRef      *string             `gorm:"column:payment_ref;index"`
	SettledPayment  *string             `gorm:"column:settled_payment_id"`
	CancelReason    *enums.CancelReason `gorm:"column:cancel_reason"`
	TotalCents      int                 `gorm:"column:total_cents;not null"`
	Observation     *string             `gorm:"column:observation"`
	PixQRText       *string             `gorm:"column:pix_qr_text"`
	PixQRImage      *string             `gorm:"column:pix_qr_image"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CanceledAt      *time.Time          `gorm:"column:canceled_at"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
