package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/auricjewels/auric-backend/pkg/enums"
)

// RewardTransaction is one entry in a user's reward ledger. Holds reference
// the order they secure so a confirmation or release can find them later.
type RewardTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	Type        enums.RewardTransactionType `gorm:"column:type;type:text;not null"`
	Points      int                         `gorm:"column:points;not null"`
	AmountPaise int64                       `gorm:"column:amount_paise;not null;default:0"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
