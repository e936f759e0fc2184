package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

type sampleBody struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Source string `json:"sourceUrl" validate:"omitempty,url"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=10"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"`+uuid.NewString()+`","extra":1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"nope","sourceUrl":"not a url","limit":50}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["userId"])
	assert.Equal(t, "must be a valid url", details["sourceUrl"])
	assert.Equal(t, "must be at most 10", details["limit"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	assert.Error(t, err)
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	assert.Error(t, err)
}

func TestParseQueryUUIDs(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/?id="+a.String()+","+b.String()+"&id="+c.String(), nil)

	ids, err := ParseQueryUUIDs(req, "id")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b, c}, ids)

	bad := httptest.NewRequest(http.MethodDelete, "/?id=nope", nil)
	_, err = ParseQueryUUIDs(bad, "id")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUIDsCapsCount(t *testing.T) {
	parts := make([]string, MaxQueryIDs+1)
	for i := range parts {
		parts[i] = uuid.NewString()
	}
	req := httptest.NewRequest(http.MethodDelete, "/?id="+strings.Join(parts, ","), nil)
	_, err := ParseQueryUUIDs(req, "id")
	require.Error(t, err)
	assert.Equal(t, "too many ids", pkgerrors.As(err).Message())

	req = httptest.NewRequest(http.MethodDelete, "/?id="+strings.Join(parts[:MaxQueryIDs], ","), nil)
	ids, err := ParseQueryUUIDs(req, "id")
	require.NoError(t, err)
	assert.Len(t, ids, MaxQueryIDs)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abc", SanitizeString(" abc ", 0))
	assert.Equal(t, "linen tote bag", SanitizeString("linen \t tote\n\nbag", 0))
	assert.Equal(t, "héll", SanitizeString("héllo", 4))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 0))
	assert.Equal(t, "ab", SanitizeString("ab cd", 3))
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"userId":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Message(), "exceeds")
}

func TestDecodeJSONBodyRejectsTrailingObjects(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"`+id+`"}{"userId":"`+id+`"}`))
	var body sampleBody
	require.Error(t, DecodeJSONBody(req, &body))
}
