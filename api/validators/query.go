package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

// MaxQueryIDs bounds how many ids a single bulk request may name.
const MaxQueryIDs = 100

func queryError(key, message string, cause error, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer within [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", err, nil)
	}
	if value < min || value > max {
		return 0, queryError(key, "query parameter out of range", nil, map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryUUIDs reads a repeated and/or comma separated uuid query parameter.
func ParseQueryUUIDs(r *http.Request, key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, value := range r.URL.Query()[key] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, queryError(key, "query parameter must be a uuid", err, map[string]any{"value": part})
			}
			if len(ids) == MaxQueryIDs {
				return nil, queryError(key, "too many ids", nil, map[string]any{"max": MaxQueryIDs})
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
