package credits

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/internal/plans"
	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Admission rejection reasons.
const (
	ReasonTrialExpired        = "trial_expired"
	ReasonInsufficientCredits = "insufficient_credits"
)

// Availability is the read-only admission answer for a prospective action.
type Availability struct {
	Available        bool   `json:"available"`
	CreditsNeeded    int    `json:"creditsNeeded"`
	CreditsRemaining int    `json:"creditsRemaining"`
	Reason           string `json:"reason,omitempty"`
}

// DeductResult reports the outcome of an atomic deduction.
type DeductResult struct {
	Success          bool   `json:"success"`
	CreditsDeducted  int    `json:"creditsDeducted"`
	CreditsRemaining int    `json:"creditsRemaining"`
	CreditsNeeded    int    `json:"creditsNeeded"`
	Reason           string `json:"reason,omitempty"`
}

// Balance is the caller-facing view of an account's counters.
type Balance struct {
	AccountID          uuid.UUID                `json:"accountId"`
	PlanID             string                   `json:"planId"`
	PlanName           string                   `json:"planName"`
	CreditsUsed        int                      `json:"creditsUsed"`
	CreditsLimit       int                      `json:"creditsLimit"`
	CreditsRemaining   int                      `json:"creditsRemaining"`
	OverLimit          bool                     `json:"overLimit"`
	TrialEndsAt        *time.Time               `json:"trialEndsAt,omitempty"`
	TrialExpired       bool                     `json:"trialExpired"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscriptionStatus"`
	AccountCreatedAt   time.Time                `json:"accountCreatedAt"`
}

// Grant is a plan change delivered by the payment provider.
type Grant struct {
	Provider   string
	EventID    string
	AccountID  uuid.UUID
	PlanID     string
	Status     enums.SubscriptionStatus
	ResetUsage bool
}

// UsageEntry is one audit row of the usage log.
type UsageEntry struct {
	ID               uuid.UUID        `json:"id"`
	Action           plans.ActionType `json:"action"`
	Quantity         int              `json:"quantity"`
	Amount           int              `json:"amount"`
	CreditsRemaining int              `json:"creditsRemaining"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func usageEntryFromModel(m models.CreditUsageLog) UsageEntry {
	return UsageEntry{
		ID:               m.ID,
		Action:           plans.ActionType(m.ActionType),
		Quantity:         m.Quantity,
		Amount:           m.Amount,
		CreditsRemaining: m.CreditsRemaining,
		CreatedAt:        m.CreatedAt,
	}
}
