package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/auricjewels/auric-backend/pkg/enums"
)

// OrderStatusEvent is one entry in an order's timeline. Rows are append-only
// and strictly non-decreasing in lifecycle rank.
type OrderStatusEvent struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Note      *string           `gorm:"column:note"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
