package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/listingforge-backend/pkg/db/types"
)

// ListingChannel is a per-channel override of a listing plus its validation state.
type ListingChannel struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ListingID       uuid.UUID          `gorm:"column:listing_id;type:uuid;not null"`
	ChannelID       uuid.UUID          `gorm:"column:channel_id;type:uuid;not null"`
	Channel         *Channel           `gorm:"foreignKey:ChannelID"`
	Title           string             `gorm:"column:title;not null"`
	Description     string             `gorm:"column:description;not null"`
	Tags            dbtypes.StringList `gorm:"column:tags;type:jsonb;not null"`
	Bullets         dbtypes.StringList `gorm:"column:bullets;type:jsonb;not null"`
	Materials       dbtypes.StringList `gorm:"column:materials;type:jsonb;not null"`
	CustomFields    dbtypes.JSON       `gorm:"column:custom_fields;type:jsonb"`
	ValidationState dbtypes.JSON       `gorm:"column:validation_state;type:jsonb"`
	ReadinessScore  int                `gorm:"column:readiness_score;not null"`
	IsReady         bool               `gorm:"column:is_ready;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
