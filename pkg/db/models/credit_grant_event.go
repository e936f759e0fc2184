package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditGrantEvent records each payment event applied to an account, keyed by
// (provider, event_id).
type CreditGrantEvent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Provider  string    `gorm:"column:provider;not null"`
	EventID   string    `gorm:"column:event_id;not null"`
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;not null"`
	PlanID    string    `gorm:"column:plan_id;not null"`
	Status    string    `gorm:"column:status;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
