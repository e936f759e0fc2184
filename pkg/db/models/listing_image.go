package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingImage stores ordered image entries for listings.
type ListingImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	URL       string    `gorm:"column:url;not null"`
	Position  int       `gorm:"column:position;not null"`
	IsMain    bool      `gorm:"column:is_main;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
