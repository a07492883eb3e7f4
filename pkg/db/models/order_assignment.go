package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderAssignment captures delivery-agent assignment history for an order.
// Exactly one row is active at a time; reassignment deactivates the old row.
type OrderAssignment struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	AgentID          uuid.UUID  `gorm:"column:agent_id;type:uuid;not null"`
	AssignedByUserID *uuid.UUID `gorm:"column:assigned_by_user_id;type:uuid"`
	AssignedAt       time.Time  `gorm:"column:assigned_at;autoCreateTime"`
	UnassignedAt     *time.Time `gorm:"column:unassigned_at"`
	Active           bool       `gorm:"column:active;not null;default:true"`
}
