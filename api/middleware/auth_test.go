package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/pkg/auth"
	"github.com/angelmondragon/listingforge-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer"}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), ttl, auth.AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsForeignIssuer(t *testing.T) {
	other := config.JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}
	token := mintTestToken(t, other, uuid.New(), time.Hour)
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, testJWT, userID, time.Hour)

	var captured string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured != userID.String() {
		t.Fatalf("expected user %s in context got %q", userID, captured)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tc.header)
		token, ok := bearerToken(req)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("header %q: got (%q, %v) want (%q, %v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestAuthReportsExpiredToken(t *testing.T) {
	token, err := auth.MintAccessToken(testJWT, time.Now().Add(-time.Hour), time.Minute, auth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "token expired") {
		t.Fatalf("expected expiry message, got %s", resp.Body.String())
	}
}
