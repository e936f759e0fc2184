package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/generation"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	pkgAuth "github.com/angelmondragon/listingforge-backend/pkg/auth"
	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/listingforge-backend/pkg/generator"
	"github.com/angelmondragon/listingforge-backend/pkg/metrics"
)

type memoryCache struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[scope]++
	return m.counters[scope] <= limit, m.counters[scope], nil
}

func (m *memoryCache) Ping(context.Context) error {
	return nil
}

type harness struct {
	handler       http.Handler
	cfg           *config.Config
	providerCalls int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{}

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.providerCalls++
		var req generator.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		assets := make([]generator.Asset, 0, req.Quantity)
		for i := 0; i < req.Quantity; i++ {
			assets = append(assets, generator.Asset{URL: fmt.Sprintf("https://cdn.test/%s/%d.png", req.Action, i)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generator.Result{Assets: assets})
	}))
	t.Cleanup(provider.Close)

	client := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCreditMetrics(reg)

	channelSvc, err := channels.NewService(channels.NewRepository(client.DB()))
	require.NoError(t, err)
	require.NoError(t, channelSvc.Seed(ctx, channels.DefaultCatalog()))

	creditSvc, err := credits.NewService(credits.ServiceParams{
		Repo:              credits.NewRepository(client.DB()),
		TransactionRunner: client,
		Metrics:           m,
	})
	require.NoError(t, err)

	listingSvc, err := listings.NewService(listings.ServiceParams{
		Repo:              listings.NewRepository(client.DB()),
		TransactionRunner: client,
		Channels:          channelSvc,
		Accounts:          creditSvc,
	})
	require.NoError(t, err)

	genClient, err := generator.NewClient(provider.URL, "test-key")
	require.NoError(t, err)
	generationSvc, err := generation.NewService(generation.ServiceParams{
		Credits:  creditSvc,
		Listings: listingSvc,
		Provider: genClient,
		Metrics:  m,
	})
	require.NoError(t, err)

	h.cfg = &config.Config{
		App:        config.AppConfig{Env: "test"},
		JWT:        config.JWTConfig{Secret: "router-secret", Issuer: "listingforge-test"},
		Generation: config.GenerationConfig{RateLimitWindow: time.Minute, RateLimitMax: 50},
	}
	h.handler = NewRouter(
		h.cfg,
		nil,
		client,
		newMemoryCache(),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		creditSvc,
		listingSvc,
		channelSvc,
		generationSvc,
		StripeWebhook{},
	)
	return h
}

func (h *harness) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health/live", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-ListingForge-Env"))

	rec = h.do(t, http.MethodGet, "/health/ready", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &ready)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "ok", ready.Checks["redis"])
}

func TestPlansArePublic(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/plans", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []map[string]any
	decode(t, rec, &plans)
	assert.Len(t, plans, 4)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/credits", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDMustMatchToken(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New())

	rec := h.do(t, http.MethodGet, "/api/v1/credits?userId="+uuid.NewString(), token, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/credits?userId=not-a-uuid", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountProvisionAndBalance(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	token := h.token(t, user)

	rec := h.do(t, http.MethodPost, "/api/v1/accounts", token, map[string]any{"userId": user.String()}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/credits?userId="+user.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance credits.Balance
	decode(t, rec, &balance)
	assert.Equal(t, "free", balance.PlanID)
	assert.Equal(t, 15, balance.CreditsRemaining)

	rec = h.do(t, http.MethodPost, "/api/v1/credits/check", token, map[string]any{
		"userId":   user.String(),
		"action":   "video_generation",
		"quantity": 2,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var availability credits.Availability
	decode(t, rec, &availability)
	assert.False(t, availability.Available)
	assert.Equal(t, 20, availability.CreditsNeeded)

	rec = h.do(t, http.MethodPost, "/api/v1/credits/check", token, map[string]any{
		"userId":   user.String(),
		"action":   "image_generation",
		"quantity": 3074457345618258603,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestListingLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	token := h.token(t, user)

	rec := h.do(t, http.MethodPost, "/api/v1/listings", token, map[string]any{
		"userId": user.String(),
		"base": map[string]any{
			"title":    "Handmade ceramic mug",
			"price":    "24.00",
			"category": "home",
			"images":   []string{"https://img.test/a.png", "https://img.test/b.png", "https://img.test/c.png"},
		},
		"channels": []map[string]any{
			{"channelId": "etsy", "title": "X", "isReady": true, "readinessScore": 100},
		},
		"seoScore": 99,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved listings.ListingDTO
	decode(t, rec, &saved)
	require.Len(t, saved.Images, 3)
	assert.True(t, saved.Images[0].IsMain)
	require.Len(t, saved.Channels, 1)
	assert.Equal(t, "etsy", saved.Channels[0].ChannelSlug)

	rec = h.do(t, http.MethodGet, "/api/v1/listings/"+saved.ID.String()+"?userId="+user.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got listings.ListingDTO
	decode(t, rec, &got)
	urls := make([]string, 0, len(got.Images))
	for _, img := range got.Images {
		urls = append(urls, img.URL)
	}
	assert.Equal(t, []string{"https://img.test/a.png", "https://img.test/b.png", "https://img.test/c.png"}, urls)

	rec = h.do(t, http.MethodGet, "/api/v1/listings?userId="+user.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page listings.ListResult
	decode(t, rec, &page)
	require.Len(t, page.Listings, 1)
	assert.Equal(t, 3, page.Listings[0].ImageCount)

	stranger := h.token(t, uuid.New())
	rec = h.do(t, http.MethodGet, "/api/v1/listings/"+saved.ID.String(), stranger, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/v1/listings?id="+saved.ID.String()+"&userId="+user.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/listings/"+saved.ID.String(), token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkDeleteWithBody(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	token := h.token(t, user)

	ids := make([]string, 0, 2)
	for _, title := range []string{"one", "two"} {
		rec := h.do(t, http.MethodPost, "/api/v1/listings", token, map[string]any{
			"base": map[string]any{"title": title},
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var saved listings.ListingDTO
		decode(t, rec, &saved)
		ids = append(ids, saved.ID.String())
	}

	rec := h.do(t, http.MethodDelete, "/api/v1/listings", token, map[string]any{"ids": ids, "userId": user.String()}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/listings", token, nil, nil)
	var page listings.ListResult
	decode(t, rec, &page)
	assert.Empty(t, page.Listings)
}

func TestGenerateChargesOnceAndReplays(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	token := h.token(t, user)
	body := map[string]any{"userId": user.String(), "quantity": 1, "prompt": "mug on a desk"}

	rec := h.do(t, http.MethodPost, "/api/v1/generate/image_generation", token, body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "idempotency key is required")

	headers := map[string]string{"Idempotency-Key": "gen-1"}
	rec = h.do(t, http.MethodPost, "/api/v1/generate/image_generation", token, body, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result generation.RunResult
	decode(t, rec, &result)
	assert.Equal(t, 3, result.CreditsDeducted)
	assert.Equal(t, 12, result.CreditsRemaining)
	assert.Len(t, result.Assets, 1)

	replay := h.do(t, http.MethodPost, "/api/v1/generate/image_generation", token, body, headers)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, rec.Body.String(), replay.Body.String())
	assert.Equal(t, 1, h.providerCalls)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `credits_deducted_total{action="image_generation"} 3`), rec.Body.String())
}

func TestGenerateInsufficientCredits(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	token := h.token(t, user)

	rec := h.do(t, http.MethodPost, "/api/v1/generate/video_generation", token,
		map[string]any{"userId": user.String(), "quantity": 2},
		map[string]string{"Idempotency-Key": "video-1"})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	env := decode(t, rec, nil)
	assert.Equal(t, "INSUFFICIENT_CREDITS", env.Error.Code)
	assert.EqualValues(t, 20, env.Error.Details["creditsNeeded"])
	assert.EqualValues(t, 15, env.Error.Details["creditsRemaining"])
	assert.Equal(t, true, env.Error.Details["upgrade"])
	assert.Zero(t, h.providerCalls)
}

func TestGenerateUnknownAction(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New())
	rec := h.do(t, http.MethodPost, "/api/v1/generate/teleport", token, map[string]any{}, map[string]string{"Idempotency-Key": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookNotMountedWithoutConfig(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New())
	rec := h.do(t, http.MethodPost, "/api/v1/webhooks/stripe", token, map[string]any{}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelCatalogAndValidation(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New())

	rec := h.do(t, http.MethodGet, "/api/v1/channels", token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var catalog []struct {
		Slug string `json:"slug"`
	}
	decode(t, rec, &catalog)
	require.Len(t, catalog, 5)

	rec = h.do(t, http.MethodPost, "/api/v1/channels/etsy/validate", token, map[string]any{
		"title": "Short",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Valid          bool     `json:"valid"`
		Errors         []string `json:"errors"`
		ReadinessScore int      `json:"readinessScore"`
		IsReady        bool     `json:"isReady"`
	}
	decode(t, rec, &result)
	assert.False(t, result.Valid)
	assert.False(t, result.IsReady)
	assert.NotEmpty(t, result.Errors)
	assert.Less(t, result.ReadinessScore, 100)

	rec = h.do(t, http.MethodPost, "/api/v1/channels/myspace/validate", token, map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
