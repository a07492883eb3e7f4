package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the per-line snapshot frozen into an order at creation time.
// Later catalog edits never touch these rows.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	SKU            string    `gorm:"column:sku;not null"`
	ImageURL       string    `gorm:"column:image_url"`
	UnitPricePaise int64     `gorm:"column:unit_price_paise;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	TotalPaise     int64     `gorm:"column:total_paise;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
