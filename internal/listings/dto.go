package listings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// ImageInput is one entry of the desired image set. Position is optional; when
// every entry carries one they must form a permutation of 0..N-1.
type ImageInput struct {
	URL      string `json:"url" validate:"required,url"`
	Position *int   `json:"position,omitempty" validate:"omitempty,min=0"`
}

// ChannelOverrideInput is the desired per-channel override. Channel accepts a
// slug or a channel id.
type ChannelOverrideInput struct {
	Channel      string         `json:"channelId" validate:"required"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	Bullets      []string       `json:"bullets"`
	Materials    []string       `json:"materials"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// SaveInput is the full desired state of a listing.
type SaveInput struct {
	ID             *uuid.UUID
	Title          string
	Description    string
	Price          *decimal.Decimal
	Currency       string
	Category       string
	Status         string
	LastStep       int
	ScrollPosition int
	Images         []ImageInput
	Channels       []ChannelOverrideInput

	// expectedUpdatedAt makes the save fail with errStaleSnapshot when the
	// stored row has moved past the snapshot the input was built from.
	expectedUpdatedAt *time.Time
}

// ListingDTO is the reconstructed aggregate.
type ListingDTO struct {
	ID             uuid.UUID            `json:"id"`
	UserID         uuid.UUID            `json:"userId"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Price          *decimal.Decimal     `json:"price,omitempty"`
	Currency       enums.Currency       `json:"currency"`
	Category       string               `json:"category"`
	Status         enums.ListingStatus  `json:"status"`
	SEOScore       int                  `json:"seoScore"`
	LastStep       int                  `json:"lastStep"`
	ScrollPosition int                  `json:"scrollPosition"`
	Images         []ImageDTO           `json:"images"`
	Channels       []ChannelOverrideDTO `json:"channels"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// ImageDTO is a persisted image entry.
type ImageDTO struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Position int       `json:"position"`
	IsMain   bool      `json:"isMain"`
}

// ChannelOverrideDTO is a persisted override joined to its channel.
type ChannelOverrideDTO struct {
	ID              uuid.UUID        `json:"id"`
	ChannelID       uuid.UUID        `json:"channelId"`
	ChannelSlug     string           `json:"channelSlug"`
	ChannelName     string           `json:"channelName"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Tags            []string         `json:"tags"`
	Bullets         []string         `json:"bullets"`
	Materials       []string         `json:"materials"`
	CustomFields    map[string]any   `json:"customFields,omitempty"`
	ValidationState *channels.Result `json:"validationState,omitempty"`
	ReadinessScore  int              `json:"readinessScore"`
	IsReady         bool             `json:"isReady"`
}

// Filters narrows List results.
type Filters struct {
	Status string
	Search string
	Limit  int
	Cursor string
}

// Summary is the list view of a listing.
type Summary struct {
	ID           uuid.UUID          `json:"id"`
	Title        string             `json:"title"`
	Price        *decimal.Decimal   `json:"price,omitempty"`
	Currency     string             `json:"currency"`
	Category     string             `json:"category"`
	Status       string             `json:"status"`
	PreviewImage *string            `json:"previewImage,omitempty"`
	ImageCount   int                `json:"imageCount"`
	SEOScore     int                `json:"seoScore"`
	Channels     []ChannelReadiness `json:"channels"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// ChannelReadiness is the summary projection of one override.
type ChannelReadiness struct {
	ChannelID      uuid.UUID `json:"channelId"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	ReadinessScore int       `json:"readinessScore"`
	IsReady        bool      `json:"isReady"`
}

// ListResult is one page of summaries.
type ListResult struct {
	Listings   []Summary `json:"listings"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// NewListingDTO builds the aggregate view from a preloaded model.
func NewListingDTO(listing *models.Listing) *ListingDTO {
	dto := &ListingDTO{
		ID:             listing.ID,
		UserID:         listing.UserID,
		Title:          listing.Title,
		Description:    listing.Description,
		Currency:       listing.Currency,
		Category:       listing.Category,
		Status:         listing.Status,
		SEOScore:       listing.SEOScore,
		LastStep:       listing.LastStep,
		ScrollPosition: listing.ScrollPosition,
		Images:         make([]ImageDTO, 0, len(listing.Images)),
		Channels:       make([]ChannelOverrideDTO, 0, len(listing.Channels)),
		CreatedAt:      listing.CreatedAt,
		UpdatedAt:      listing.UpdatedAt,
	}
	if listing.Price.Valid {
		price := listing.Price.Decimal
		dto.Price = &price
	}
	for _, img := range listing.Images {
		dto.Images = append(dto.Images, ImageDTO{
			ID:       img.ID,
			URL:      img.URL,
			Position: img.Position,
			IsMain:   img.IsMain,
		})
	}
	for _, row := range listing.Channels {
		dto.Channels = append(dto.Channels, newChannelOverrideDTO(row))
	}
	return dto
}

func newChannelOverrideDTO(row models.ListingChannel) ChannelOverrideDTO {
	out := ChannelOverrideDTO{
		ID:             row.ID,
		ChannelID:      row.ChannelID,
		Title:          row.Title,
		Description:    row.Description,
		Tags:           append([]string{}, row.Tags...),
		Bullets:        append([]string{}, row.Bullets...),
		Materials:      append([]string{}, row.Materials...),
		ReadinessScore: row.ReadinessScore,
		IsReady:        row.IsReady,
	}
	if row.Channel != nil {
		out.ChannelSlug = row.Channel.Slug
		out.ChannelName = row.Channel.Name
	}
	if len(row.CustomFields) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(row.CustomFields, &fields); err == nil {
			out.CustomFields = fields
		}
	}
	if len(row.ValidationState) > 0 {
		var state channels.Result
		if err := json.Unmarshal(row.ValidationState, &state); err == nil {
			out.ValidationState = &state
		}
	}
	return out
}

func (r summaryRecord) toSummary(readiness []ChannelReadiness) Summary {
	out := Summary{
		ID:         r.ID,
		Title:      r.Title,
		Currency:   r.Currency,
		Category:   r.Category,
		Status:     r.Status,
		ImageCount: r.ImageCount,
		SEOScore:   r.SEOScore,
		Channels:   readiness,
		UpdatedAt:  r.UpdatedAt,
	}
	if out.Channels == nil {
		out.Channels = []ChannelReadiness{}
	}
	if r.Price.Valid {
		price := r.Price.Decimal
		out.Price = &price
	}
	if r.PreviewImage.Valid {
		preview := r.PreviewImage.String
		out.PreviewImage = &preview
	}
	return out
}
