package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Listing is the base row of the listing aggregate.
type Listing struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Title          string              `gorm:"column:title;not null"`
	Description    string              `gorm:"column:description;not null"`
	Price          decimal.NullDecimal `gorm:"column:price;type:numeric(12,2)"`
	Currency       enums.Currency      `gorm:"column:currency;not null"`
	Category       string              `gorm:"column:category;not null"`
	Status         enums.ListingStatus `gorm:"column:status;not null"`
	SEOScore       int                 `gorm:"column:seo_score;not null"`
	LastStep       int                 `gorm:"column:last_step;not null"`
	ScrollPosition int                 `gorm:"column:scroll_position;not null"`
	Images         []ListingImage      `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	Channels       []ListingChannel    `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
