package models

import (
	"time"

	"github.com/google/uuid"
)

// RewardAccount holds the per-user point balance. Balance always equals
// total_earned minus total_redeemed and never goes negative; every mutation
// is a conditional update, not read-then-write.
type RewardAccount struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance       int       `gorm:"column:balance;not null;default:0"`
	TotalEarned   int       `gorm:"column:total_earned;not null;default:0"`
	TotalRedeemed int       `gorm:"column:total_redeemed;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
