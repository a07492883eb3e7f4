package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a fulfillment location. Warehouse selection prefers same-city,
// then same-state matches for the destination pincode.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Pincode   string    `gorm:"column:pincode;not null"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
