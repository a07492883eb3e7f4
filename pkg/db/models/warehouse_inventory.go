package models

import (
	"time"

	"github.com/google/uuid"
)

// WarehouseInventory tracks stock and reserved counts per (warehouse, product).
// reserved_qty never exceeds stock_qty.
type WarehouseInventory struct {
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StockQty    int       `gorm:"column:stock_qty;not null;default:0"`
	ReservedQty int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableQty is the stock not currently held by a reservation.
func (w WarehouseInventory) AvailableQty() int {
	return w.StockQty - w.ReservedQty
}
