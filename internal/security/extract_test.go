package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTokenPrefersHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "jwt-token", Value: "from-cookie"})

	token, ok := ExtractToken(r, "jwt-token")
	assert.True(t, ok)
	assert.Equal(t, "from-header", token)
}

func TestExtractTokenFallsBackToCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "jwt-token", Value: "from-cookie"})

	token, ok := ExtractToken(r, "jwt-token")
	assert.True(t, ok)
	assert.Equal(t, "from-cookie", token)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	token, ok = ExtractToken(r, "jwt-token")
	assert.True(t, ok)
	assert.Equal(t, "from-cookie", token)
}

func TestExtractTokenMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer   ")

	_, ok := ExtractToken(r, "jwt-token")
	assert.False(t, ok)

	_, ok = ExtractToken(r, "")
	assert.False(t, ok)
}
