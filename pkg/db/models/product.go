package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog read model checkout snapshots from. The wider
// catalog service owns these rows; this subsystem only reads them.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	SKU        string    `gorm:"column:sku;not null;uniqueIndex"`
	PricePaise int64     `gorm:"column:price_paise;not null"`
	ImageURL   string    `gorm:"column:image_url"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
