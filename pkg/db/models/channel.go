package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/listingforge-backend/pkg/db/types"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Channel is a target marketplace and its field rule schema.
type Channel struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Slug         string             `gorm:"column:slug;not null;uniqueIndex"`
	Name         string             `gorm:"column:name;not null"`
	ExportFormat enums.ExportFormat `gorm:"column:export_format;not null"`
	Rules        dbtypes.JSON       `gorm:"column:rules;type:jsonb;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
