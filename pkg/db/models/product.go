package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product represents a menu item. Stock is nullable: NULL means unlimited and
// reservations against it are no-ops. When Stock is set the invariant
// stock - stock_reserved >= 0 holds at all times; both columns are mutated
// only through the inventory service.
type Product struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID       uuid.UUID      `gorm:"column:store_id;type:uuid;not null;index"`
	Name          string         `gorm:"column:name;not null"`
	Description   *string        `gorm:"column:description"`
	Tags          pq.StringArray `gorm:"column:tags;type:text[]"`
	ImageURL      *string        `gorm:"column:image_url"`
	PriceCents    int            `gorm:"column:price_cents;not null"`
	Stock         *int           `gorm:"column:stock"`
	StockReserved int            `gorm:"column:stock_reserved;not null;default:0"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the sellable quantity, or nil for unlimited stock.
func (p Product) Available() *int {
	if p.Stock == nil {
		return nil
	}
	avail := *p.Stock - p.StockReserved
	if avail < 0 {
		avail = 0
	}
	return &avail
}
