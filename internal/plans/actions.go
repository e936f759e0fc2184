package plans

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

// ActionType enumerates every metered operation.
type ActionType string

const (
	ActionImageGeneration       ActionType = "image_generation"
	ActionVideoGeneration       ActionType = "video_generation"
	ActionMockupDownload        ActionType = "mockup_download"
	ActionTitleGeneration       ActionType = "title_generation"
	ActionDescriptionGeneration ActionType = "description_generation"
	ActionTagGeneration         ActionType = "tag_generation"
	ActionListingOptimization   ActionType = "listing_optimization"
)

var allActions = []ActionType{
	ActionImageGeneration,
	ActionVideoGeneration,
	ActionMockupDownload,
	ActionTitleGeneration,
	ActionDescriptionGeneration,
	ActionTagGeneration,
	ActionListingOptimization,
}

// costs must hold an entry for every value in allActions; init panics otherwise.
var costs = map[ActionType]int{
	ActionImageGeneration:       3,
	ActionVideoGeneration:       10,
	ActionMockupDownload:        1,
	ActionTitleGeneration:       0,
	ActionDescriptionGeneration: 0,
	ActionTagGeneration:         0,
	ActionListingOptimization:   0,
}

func init() {
	for _, action := range allActions {
		if _, ok := costs[action]; !ok {
			panic(fmt.Sprintf("plans: action %q has no credit cost", action))
		}
	}
	if len(costs) != len(allActions) {
		panic("plans: cost table references an unknown action")
	}
}

// Actions returns every metered action in declaration order.
func Actions() []ActionType {
	out := make([]ActionType, len(allActions))
	copy(out, allActions)
	return out
}

// ParseActionType converts raw input into an ActionType.
func ParseActionType(value string) (ActionType, error) {
	for _, candidate := range allActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action type %q", value)
}

func (a ActionType) String() string {
	return string(a)
}

// IsValid reports whether the action is part of the enumeration.
func (a ActionType) IsValid() bool {
	_, ok := costs[a]
	return ok
}

// ProducesAssets reports whether the action yields media a listing can attach.
func (a ActionType) ProducesAssets() bool {
	switch a {
	case ActionImageGeneration, ActionVideoGeneration, ActionMockupDownload:
		return true
	default:
		return false
	}
}

// Cost returns the per-unit credit cost. Unknown actions are an error, never zero.
func Cost(action ActionType) (int, error) {
	cost, ok := costs[action]
	if !ok {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action type %q", action)
	}
	return cost, nil
}

// MaxQuantity bounds a single admission check or deduction.
const MaxQuantity = 1000

// TotalCost multiplies the unit cost by quantity.
func TotalCost(action ActionType, quantity int) (int, error) {
	switch {
	case quantity < 1:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	case quantity > MaxQuantity:
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", MaxQuantity)
	}
	unit, err := Cost(action)
	if err != nil {
		return 0, err
	}
	return unit * quantity, nil
}
