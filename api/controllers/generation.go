package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	"github.com/angelmondragon/listingforge-backend/api/validators"
	"github.com/angelmondragon/listingforge-backend/internal/generation"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

type generateRequest struct {
	UserID    string  `json:"userId" validate:"omitempty,uuid"`
	Quantity  int     `json:"quantity" validate:"omitempty,min=1,max=20"`
	ListingID *string `json:"listingId,omitempty" validate:"omitempty,uuid"`
	Prompt    string  `json:"prompt"`
	SourceURL string  `json:"sourceUrl" validate:"omitempty,url"`
}

// Generate runs a credit-gated provider action. Credits are only spent once the
// provider succeeds.
func Generate(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}

		action, err := plans.ParseActionType(strings.TrimSpace(chi.URLParam(r, "action")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload generateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := accountFromRequest(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := generation.RunInput{
			AccountID: accountID,
			Action:    action,
			Quantity:  payload.Quantity,
			Prompt:    strings.TrimSpace(payload.Prompt),
			SourceURL: strings.TrimSpace(payload.SourceURL),
		}
		if payload.ListingID != nil {
			id, err := uuid.Parse(*payload.ListingID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listingId"))
				return
			}
			input.ListingID = &id
		}

		result, err := svc.Run(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
