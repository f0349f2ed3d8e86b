package models

import (
	"time"

	"github.com/google/uuid"
)

// Store represents a tenant: one kiosk deployment with its own catalog,
// orders, and gateway credentials.
type Store struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Slug          string    `gorm:"column:slug;not null;uniqueIndex"`
	MPAccessToken *string   `gorm:"column:mp_access_token"`
	MPDeviceID    *string   `gorm:"column:mp_device_id"`
	Active        bool      `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
