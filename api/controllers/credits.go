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

const (
	defaultUsageLimit = 50
	maxUsageLimit     = 200
)

// CreditsBalance returns the caller's plan and counters.
func CreditsBalance(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		accountID, err := queryAccount(r)
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
		responses.WriteSuccess(w, balance)
	}
}

// CreditsUsage returns the newest usage log entries.
func CreditsUsage(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		accountID, err := queryAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultUsageLimit, 1, maxUsageLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.UsageHistory(r.Context(), accountID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

type creditCheckRequest struct {
	UserID   string `json:"userId" validate:"omitempty,uuid"`
	Action   string `json:"action" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=1000"`
}

// CreditsCheck answers whether an action would be admitted without spending.
func CreditsCheck(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		var payload creditCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := accountFromRequest(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := plans.ParseActionType(payload.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quantity := payload.Quantity
		if quantity == 0 {
			quantity = 1
		}

		if _, err := svc.EnsureAccount(r.Context(), accountID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.CheckAvailable(r.Context(), accountID, action, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}
