package plans

import (
	"time"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Plan is an immutable catalog entry.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	TrialDays  int    `json:"trialDays"`
	PriceCents int    `json:"priceCents"`
}

var catalog = []Plan{
	{ID: PlanFree, Name: "Free", Credits: 15, TrialDays: 7, PriceCents: 0},
	{ID: PlanStarter, Name: "Starter", Credits: 100, PriceCents: 1900},
	{ID: PlanPro, Name: "Pro", Credits: 400, PriceCents: 4900},
	{ID: PlanBusiness, Name: "Business", Credits: 1500, PriceCents: 14900},
}

// All returns the catalog in ascending price order.
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a plan by id.
func Lookup(id string) (Plan, error) {
	for _, plan := range catalog {
		if plan.ID == id {
			return plan, nil
		}
	}
	return Plan{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown plan %q", id)
}

// Default is the plan assigned to newly provisioned accounts.
func Default() Plan {
	return catalog[0]
}

// HasTrial reports whether the plan is time-boxed.
func (p Plan) HasTrial() bool {
	return p.TrialDays > 0
}

// TrialEndsAt returns the instant the trial lapses, or nil for plans without one.
func (p Plan) TrialEndsAt(createdAt time.Time) *time.Time {
	if !p.HasTrial() {
		return nil
	}
	end := createdAt.Add(time.Duration(p.TrialDays) * 24 * time.Hour)
	return &end
}

// TrialExpired reports whether whole days elapsed since createdAt reached TrialDays.
func (p Plan) TrialExpired(createdAt, now time.Time) bool {
	if !p.HasTrial() {
		return false
	}
	elapsedDays := int(now.Sub(createdAt) / (24 * time.Hour))
	return elapsedDays >= p.TrialDays
}
