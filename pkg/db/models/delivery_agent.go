package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAgent is a courier eligible for order assignment. AssignedPincodes
// wins over AssignedArea (city) when matching a destination; ties break on
// the lowest ActiveOrders. Load counters are eventually consistent reads.
type DeliveryAgent struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name             string    `gorm:"column:name;not null"`
	Phone            string    `gorm:"column:phone;not null"`
	AssignedArea     string    `gorm:"column:assigned_area;not null"`
	AssignedPincodes []string  `gorm:"column:assigned_pincodes;type:jsonb;serializer:json"`
	ActiveOrders     int       `gorm:"column:active_orders;not null;default:0"`
	TotalAssigned    int       `gorm:"column:total_assigned;not null;default:0"`
	TotalDelivered   int       `gorm:"column:total_delivered;not null;default:0"`
	IsActive         bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ServesPincode reports whether the destination pincode is in the agent's set.
func (a *DeliveryAgent) ServesPincode(code string) bool {
	for _, candidate := range a.AssignedPincodes {
		if candidate == code {
			return true
		}
	}
	return false
}
