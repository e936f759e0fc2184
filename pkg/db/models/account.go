package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Account holds the credit counters for one identity-provider user.
type Account struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	PlanID             string                   `gorm:"column:plan_id;not null"`
	CreditsUsed        int                      `gorm:"column:credits_used;not null"`
	CreditsLimit       int                      `gorm:"column:credits_limit;not null"`
	SubscriptionStatus enums.SubscriptionStatus `gorm:"column:subscription_status;not null"`
	CreatedAt          time.Time                `gorm:"column:account_created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// CreditsRemaining clamps at zero for over-limit accounts.
func (a Account) CreditsRemaining() int {
	if a.CreditsUsed >= a.CreditsLimit {
		return 0
	}
	return a.CreditsLimit - a.CreditsUsed
}
