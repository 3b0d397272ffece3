package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decentra/internal/models"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		Secret:   "test-secret",
		Issuer:   "decentra-api",
		Audience: "decentra-web",
		TTL:      24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndValidate(t *testing.T) {
	m := newTestManager(t)
	user := models.User{ID: 42, Role: models.UserRoleAdmin}

	issued, err := m.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.ExpiresAt, 5*time.Second)

	claims, err := m.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.UserRoleAdmin, claims.Role)
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.Equal(t, issued.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestIssueGivesUniqueTokenIDs(t *testing.T) {
	m := newTestManager(t)
	user := models.User{ID: 1, Role: models.UserRoleUser}

	a, err := m.Issue(user)
	require.NoError(t, err)
	b, err := m.Issue(user)
	require.NoError(t, err)
	assert.NotEqual(t, a.TokenID, b.TokenID)
}

func TestIssueRejectsIncompleteUser(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Issue(models.User{Role: models.UserRoleUser})
	assert.Error(t, err)

	_, err = m.Issue(models.User{ID: 1, Role: "superadmin"})
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	issued, err := m.Issue(models.User{ID: 7, Role: models.UserRoleUser})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m := newTestManager(t)
	user := models.User{ID: 7, Role: models.UserRoleUser}

	other, err := NewTokenManager(TokenConfig{Secret: "other", Issuer: "decentra-api", Audience: "decentra-web", TTL: time.Hour})
	require.NoError(t, err)
	wrongSecret, err := other.Issue(user)
	require.NoError(t, err)

	wrongIssuerMgr, err := NewTokenManager(TokenConfig{Secret: "test-secret", Issuer: "someone-else", Audience: "decentra-web", TTL: time.Hour})
	require.NoError(t, err)
	wrongIssuer, err := wrongIssuerMgr.Issue(user)
	require.NoError(t, err)

	wrongAudienceMgr, err := NewTokenManager(TokenConfig{Secret: "test-secret", Issuer: "decentra-api", Audience: "mobile", TTL: time.Hour})
	require.NoError(t, err)
	wrongAudience, err := wrongAudienceMgr.Issue(user)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.jwt",
		"wrong secret":   wrongSecret.Token,
		"wrong issuer":   wrongIssuer.Token,
		"wrong audience": wrongAudience.Token,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidateRejectsSchemaDrift(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()

	sign := func(claims accessClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}
	registered := func(subject string) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "decentra-api",
			Audience:  jwt.ClaimStrings{"decentra-web"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
	}

	noVersion := sign(accessClaims{Role: "user", RegisteredClaims: registered("5")})
	badSubject := sign(accessClaims{Role: "user", Version: claimsVersion, RegisteredClaims: registered("abc")})
	badRole := sign(accessClaims{Role: "root", Version: claimsVersion, RegisteredClaims: registered("5")})
	noExpiry := registered("5")
	noExpiry.ExpiresAt = nil
	withoutExp := sign(accessClaims{Role: "user", Version: claimsVersion, RegisteredClaims: noExpiry})

	for _, token := range []string{noVersion, badSubject, badRole, withoutExp} {
		_, err := m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(t)
	claims := accessClaims{
		Role:    "admin",
		Version: claimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "decentra-api",
			Audience:  jwt.ClaimStrings{"decentra-web"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
