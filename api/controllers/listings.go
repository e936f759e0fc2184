package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	"github.com/angelmondragon/listingforge-backend/api/validators"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

const maxSearchLength = 200

// ListingSave upserts the full listing aggregate and returns the persisted view.
func ListingSave(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		var payload saveListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := accountFromRequest(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toSaveInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Save(r.Context(), accountID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingGet returns one reconstructed aggregate.
func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		accountID, err := queryAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "listingId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
			return
		}

		listing, err := svc.Get(r.Context(), listingID, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingList returns a page of summaries for the caller.
func ListingList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		accountID, err := queryAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), accountID, listings.Filters{
			Status: strings.TrimSpace(q.Get("status")),
			Search: validators.SanitizeString(q.Get("q"), maxSearchLength),
			Limit:  limit,
			Cursor: strings.TrimSpace(q.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type deleteListingsRequest struct {
	UserID string   `json:"userId" validate:"omitempty,uuid"`
	IDs    []string `json:"ids" validate:"omitempty,max=100,dive,uuid"`
}

// ListingDelete removes one listing (?id=) or many (body ids) with their
// images and overrides.
func ListingDelete(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		ids, err := validators.ParseQueryUUIDs(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claimed := r.URL.Query().Get("userId")
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrapf(pkgerrors.CodeValidation, err, "request body exceeds %d bytes", validators.MaxBodyBytes))
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			r.Body = io.NopCloser(bytes.NewReader(body))
			var payload deleteListingsRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if payload.UserID != "" {
				claimed = payload.UserID
			}
			for _, raw := range payload.IDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
					return
				}
				ids = append(ids, id)
			}
		}

		accountID, err := accountFromRequest(r, claimed)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), accountID, ids...); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": len(ids)})
	}
}

type saveListingRequest struct {
	ID             *string                `json:"id,omitempty" validate:"omitempty,uuid"`
	UserID         string                 `json:"userId" validate:"omitempty,uuid"`
	Status         string                 `json:"status"`
	Base           listingBaseRequest     `json:"base"`
	Channels       []channelOverrideInput `json:"channels" validate:"omitempty,dive"`
	LastStep       int                    `json:"lastStep" validate:"omitempty,min=0"`
	ScrollPosition int                    `json:"scrollPosition" validate:"omitempty,min=0"`
	// Derived server-side; accepted so clients can post back what they read.
	SEOScore json.RawMessage `json:"seoScore,omitempty"`
}

type listingBaseRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Price       *decimal.Decimal   `json:"price,omitempty"`
	Currency    string             `json:"currency"`
	Category    string             `json:"category"`
	Images      []listingImageItem `json:"images"`
}

type channelOverrideInput struct {
	ChannelID    string         `json:"channelId" validate:"required"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	Bullets      []string       `json:"bullets"`
	Materials    []string       `json:"materials"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	// Derived server-side.
	ValidationState json.RawMessage `json:"validationState,omitempty"`
	ReadinessScore  json.RawMessage `json:"readinessScore,omitempty"`
	IsReady         json.RawMessage `json:"isReady,omitempty"`
	// Present on aggregates read back from GET.
	ID          json.RawMessage `json:"id,omitempty"`
	ChannelSlug json.RawMessage `json:"channelSlug,omitempty"`
	ChannelName json.RawMessage `json:"channelName,omitempty"`
}

// listingImageItem accepts either a bare url or {"url","position"}.
type listingImageItem struct {
	URL      string
	Position *int
}

func (i *listingImageItem) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		i.URL = url
		return nil
	}
	var obj struct {
		URL      string `json:"url"`
		Position *int   `json:"position"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	i.URL = obj.URL
	i.Position = obj.Position
	return nil
}

func (r saveListingRequest) toSaveInput() (listings.SaveInput, error) {
	input := listings.SaveInput{
		Title:          r.Base.Title,
		Description:    r.Base.Description,
		Price:          r.Base.Price,
		Currency:       r.Base.Currency,
		Category:       r.Base.Category,
		Status:         r.Status,
		LastStep:       r.LastStep,
		ScrollPosition: r.ScrollPosition,
		Images:         make([]listings.ImageInput, 0, len(r.Base.Images)),
		Channels:       make([]listings.ChannelOverrideInput, 0, len(r.Channels)),
	}

	if r.ID != nil && strings.TrimSpace(*r.ID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*r.ID))
		if err != nil {
			return listings.SaveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id")
		}
		input.ID = &id
	}

	for _, img := range r.Base.Images {
		input.Images = append(input.Images, listings.ImageInput{URL: img.URL, Position: img.Position})
	}
	for _, ch := range r.Channels {
		input.Channels = append(input.Channels, listings.ChannelOverrideInput{
			Channel:      ch.ChannelID,
			Title:        ch.Title,
			Description:  ch.Description,
			Tags:         ch.Tags,
			Bullets:      ch.Bullets,
			Materials:    ch.Materials,
			CustomFields: ch.CustomFields,
		})
	}
	return input, nil
}
