package enums

import "fmt"

// ListingStatus tracks where a listing sits in the editing lifecycle.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusReady     ListingStatus = "ready"
	ListingStatusPublished ListingStatus = "published"
	ListingStatusArchived  ListingStatus = "archived"
)

var validListingStatuses = []ListingStatus{
	ListingStatusDraft,
	ListingStatusReady,
	ListingStatusPublished,
	ListingStatusArchived,
}

// String implements fmt.Stringer.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseListingStatus converts raw input into a ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
