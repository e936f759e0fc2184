package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	"github.com/angelmondragon/listingforge-backend/api/validators"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/listingforge-backend/pkg/redis"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	replayedHeader      = "Idempotent-Replayed"
	maxIdempotencyKey   = 255
	defaultReplayTTL    = 24 * time.Hour
	defaultInFlightTTL  = 5 * time.Minute
	inFlightStatusValue = 0
)

type idempotencyRoute struct {
	method string
	prefix string
	ttl    time.Duration
}

// Generation spends credits, so a retried request must replay instead of
// charging twice.
var idempotencyRoutes = []idempotencyRoute{
	{method: http.MethodPost, prefix: "/api/v1/generate/", ttl: defaultReplayTTL},
}

// idempotencyRecord is either an in-flight reservation (Status 0) or the
// captured response of a finished request.
type idempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (r idempotencyRecord) inFlight() bool {
	return r.Status == inFlightStatusValue
}

// Idempotency replays the first response for a repeated Idempotency-Key.
//
// The key is reserved before the handler runs so a concurrent duplicate is
// rejected with CONFLICT instead of executing twice. Responses with status >= 500
// release the reservation: those paths never deduct credits and may be retried.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := matchIdempotencyRoute(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			idempotencyKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if idempotencyKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			if len(idempotencyKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrapf(pkgerrors.CodeValidation, err, "request body exceeds %d bytes", validators.MaxBodyBytes))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), idempotencyKey)

			existing, err := loadRecord(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if existing != nil {
				replayOrReject(ctx, logg, w, existing, requestHash)
				return
			}

			reservation, err := json.Marshal(idempotencyRecord{Status: inFlightStatusValue, RequestHash: requestHash})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation"))
				return
			}
			reserved, err := store.SetNX(ctx, key, string(reservation), min(defaultInFlightTTL, route.ttl))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is already in progress"))
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if status >= http.StatusInternalServerError {
				logError(ctx, logg, "release idempotency key", store.Del(ctx, key))
				return
			}

			payload, err := json.Marshal(idempotencyRecord{
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency record", err)
				return
			}
			logError(ctx, logg, "persist idempotency record", store.Set(ctx, key, string(payload), route.ttl))
		})
	}
}

func loadRecord(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*idempotencyRecord, error) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && stored == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &record, nil
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, record *idempotencyRecord, requestHash string) {
	switch {
	case record.RequestHash != requestHash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.inFlight():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is already in progress"))
	default:
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response"))
			return
		}
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(body)
	}
}

// idempotencyScope keys records per user and concrete path, so the same client
// key used for two different actions never collides.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func matchIdempotencyRoute(r *http.Request) (idempotencyRoute, bool) {
	pattern := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		pattern = rctx.RoutePattern()
	}
	for _, route := range idempotencyRoutes {
		if route.method == r.Method && strings.HasPrefix(pattern, route.prefix) {
			return route, true
		}
	}
	return idempotencyRoute{}, false
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
