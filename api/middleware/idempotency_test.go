package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/listingforge-backend/api/validators"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

const generatePattern = "/api/v1/generate/{action}"

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

// generateRequest builds a routed POST to the generate endpoint; key may be empty.
func generateRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/generate/image_generation", generatePattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyRouteSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		pattern string
		ok      bool
	}{
		{"generate", http.MethodPost, "/api/v1/generate/image_generation", generatePattern, true},
		{"generate wrong method", http.MethodGet, "/api/v1/generate/image_generation", generatePattern, false},
		{"listing save", http.MethodPost, "/api/v1/listings", "/api/v1/listings", false},
		{"no route context", http.MethodPost, "/api/v1/generate/video_generation", "", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.pattern != "" {
			req = requestWithPattern(tt.method, tt.path, tt.pattern, nil)
		}
		route, ok := matchIdempotencyRoute(req)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && route.ttl != defaultReplayTTL {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, defaultReplayTTL, route.ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := generateRequest("", `{"quantity":1}`)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareSkipsUnmatchedRoutes(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/listings", "/api/v1/listings", strings.NewReader(`{}`))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run for every unmatched request, got %d", calls)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := generateRequest("abc", `{"quantity":1}`)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", resp.Code)
	}

	replay := generateRequest("abc", `{"quantity":1}`)
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareScopesKeysPerUser(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for _, user := range []string{"user-a", "user-b"} {
		req := generateRequest("shared", `{"quantity":1}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected distinct users not to share a key, got %d calls", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := generateRequest("xyz", `{"quantity":1}`)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := generateRequest("xyz", `{"quantity":2}`)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A duplicate arriving while the first request is still running.
		dup := generateRequest("busy", `{"quantity":1}`)
		inner = httptest.NewRecorder()
		Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		})).ServeHTTP(inner, dup)
		w.WriteHeader(http.StatusOK)
	})

	req := generateRequest("busy", `{"quantity":1}`)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %+v", inner)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := generateRequest("retry-me", `{"quantity":1}`)
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 503 to run again, got %d calls", calls)
	}
	if len(store.data) != 1 {
		t.Fatalf("expected only the successful response to be stored, got %d records", len(store.data))
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run with an oversized key")
	})

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, generateRequest(strings.Repeat("k", maxIdempotencyKey+1), `{"quantity":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestIdempotencyMiddlewareCapsBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run with an oversized body")
	})

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, generateRequest("big", strings.Repeat("x", validators.MaxBodyBytes+1)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(store.data) != 0 {
		t.Fatal("oversized requests must not reserve the key")
	}
}
