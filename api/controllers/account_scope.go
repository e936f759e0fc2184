package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

// accountFromRequest resolves the account a request acts on. A blank claimed id
// means the token's own account; any other id must match the token.
func accountFromRequest(r *http.Request, claimed string) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	tokenID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}

	claimed = strings.TrimSpace(claimed)
	if claimed == "" {
		return tokenID, nil
	}
	requested, err := uuid.Parse(claimed)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid userId")
	}
	if requested != tokenID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "userId does not match the authenticated account")
	}
	return requested, nil
}

func queryAccount(r *http.Request) (uuid.UUID, error) {
	return accountFromRequest(r, r.URL.Query().Get("userId"))
}
