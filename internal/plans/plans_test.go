package plans

import (
	"math"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

func TestCostIsTotalOverActions(t *testing.T) {
	for _, action := range Actions() {
		if _, err := Cost(action); err != nil {
			t.Fatalf("action %s has no cost: %v", action, err)
		}
	}

	expected := map[ActionType]int{
		ActionImageGeneration:     3,
		ActionVideoGeneration:     10,
		ActionMockupDownload:      1,
		ActionTitleGeneration:     0,
		ActionListingOptimization: 0,
	}
	for action, want := range expected {
		got, _ := Cost(action)
		if got != want {
			t.Fatalf("cost(%s) = %d, want %d", action, got, want)
		}
	}
}

func TestCostRejectsUnknownAction(t *testing.T) {
	_, err := Cost(ActionType("teleportation"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseActionType("teleportation"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTotalCost(t *testing.T) {
	total, err := TotalCost(ActionImageGeneration, 4)
	if err != nil || total != 12 {
		t.Fatalf("expected 12, got %d err=%v", total, err)
	}
	if _, err := TotalCost(ActionImageGeneration, 0); err == nil {
		t.Fatal("expected quantity error")
	}
}

func TestTotalCostRejectsQuantityAboveMaximum(t *testing.T) {
	total, err := TotalCost(ActionVideoGeneration, MaxQuantity)
	if err != nil || total != 10*MaxQuantity {
		t.Fatalf("expected %d at the maximum, got %d err=%v", 10*MaxQuantity, total, err)
	}

	for _, quantity := range []int{MaxQuantity + 1, math.MaxInt64/3 + 1, math.MaxInt} {
		total, err := TotalCost(ActionImageGeneration, quantity)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("quantity %d: expected validation error, got total=%d err=%v", quantity, total, err)
		}
	}
}

func TestLookupAndDefault(t *testing.T) {
	free, err := Lookup(PlanFree)
	if err != nil {
		t.Fatalf("lookup free: %v", err)
	}
	if free.Credits != 15 || free.TrialDays != 7 {
		t.Fatalf("unexpected free plan %+v", free)
	}
	if Default().ID != PlanFree {
		t.Fatalf("default plan should be free, got %s", Default().ID)
	}
	if _, err := Lookup("enterprise"); err == nil {
		t.Fatal("expected unknown plan error")
	}
	for _, plan := range All() {
		if plan.ID != PlanFree && plan.HasTrial() {
			t.Fatalf("paid plan %s should not carry a trial", plan.ID)
		}
	}
}

func TestTrialExpiryUsesWholeDays(t *testing.T) {
	free := Default()
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if free.TrialExpired(created, created.Add(6*24*time.Hour+23*time.Hour)) {
		t.Fatal("trial should still be active at 6 days 23 hours")
	}
	if !free.TrialExpired(created, created.Add(7*24*time.Hour)) {
		t.Fatal("trial should expire at 7 whole days")
	}
	if end := free.TrialEndsAt(created); end == nil || !end.Equal(created.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected trial end %v", end)
	}

	pro, _ := Lookup(PlanPro)
	if pro.TrialExpired(created, created.AddDate(1, 0, 0)) || pro.TrialEndsAt(created) != nil {
		t.Fatal("plans without trial never expire")
	}
}

func TestProducesAssets(t *testing.T) {
	if !ActionImageGeneration.ProducesAssets() || ActionTagGeneration.ProducesAssets() {
		t.Fatal("unexpected asset classification")
	}
}
