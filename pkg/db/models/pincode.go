package models

import "time"

// Pincode is one row of the serviceability index. Lookups match active rows
// only.
type Pincode struct {
	Code         string    `gorm:"column:code;primaryKey;size:6"`
	City         string    `gorm:"column:city;not null"`
	State        string    `gorm:"column:state;not null"`
	DeliveryDays int       `gorm:"column:delivery_days;not null;default:5"`
	CODAvailable bool      `gorm:"column:cod_available;not null;default:false"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
