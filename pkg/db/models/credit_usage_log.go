package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditUsageLog is the append-only audit row written for every deduction.
type CreditUsageLog struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	AccountID        uuid.UUID `gorm:"column:account_id;type:uuid;not null"`
	ActionType       string    `gorm:"column:action_type;not null"`
	Quantity         int       `gorm:"column:quantity;not null"`
	Amount           int       `gorm:"column:amount;not null"`
	CreditsRemaining int       `gorm:"column:credits_remaining;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
