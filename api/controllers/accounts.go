package controllers

import (
	"net/http"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	"github.com/angelmondragon/listingforge-backend/api/validators"
	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

type provisionAccountRequest struct {
	UserID string `json:"userId" validate:"omitempty,uuid"`
}

// AccountProvision creates the caller's ledger account on first contact and
// returns its balance. Repeat calls are no-ops.
func AccountProvision(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		var payload provisionAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := accountFromRequest(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.EnsureAccount(r.Context(), accountID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, balance)
	}
}

// PlanList returns the plan catalog.
func PlanList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, plans.All())
	}
}
