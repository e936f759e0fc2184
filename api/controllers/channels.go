package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	"github.com/angelmondragon/listingforge-backend/api/validators"
	"github.com/angelmondragon/listingforge-backend/internal/channels"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

// ChannelList returns the channel catalog with its rules.
func ChannelList(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "channel service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type validateChannelRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    string           `json:"category"`
	Images      []string         `json:"images"`
	Tags        []string         `json:"tags"`
	Bullets     []string         `json:"bullets"`
	Materials   []string         `json:"materials"`
}

// ChannelValidate dry-runs a channel's rules against the posted fields.
func ChannelValidate(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "channel service unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "channel slug is required"))
			return
		}

		var payload validateChannelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fields := channels.Fields{
			Title:       payload.Title,
			Description: payload.Description,
			Category:    payload.Category,
			Images:      payload.Images,
			Tags:        payload.Tags,
			Bullets:     payload.Bullets,
			Materials:   payload.Materials,
		}
		if payload.Price != nil {
			fields.Price = decimal.NewNullDecimal(*payload.Price)
		}

		result, err := svc.Validate(r.Context(), slug, fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
