package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"decentra/internal/models"
)

// claimsVersion is bumped whenever the token claim layout changes.
const claimsVersion = 1

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

type accessClaims struct {
	Role    string `json:"role"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// ClaimSet is the identity derived from a validated token. It lives for a
// single request.
type ClaimSet struct {
	UserID    int64
	Role      models.UserRole
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a signed token plus the metadata needed for transport.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.TTL)
	}
	return &TokenManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(user models.User) (IssuedToken, error) {
	if user.ID <= 0 {
		return IssuedToken{}, errors.New("issue token: user has no id")
	}
	if !user.Role.Valid() {
		return IssuedToken{}, fmt.Errorf("issue token: unknown role %q", user.Role)
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	tokenID := uuid.NewString()

	claims := accessClaims{
		Role:    string(user.Role),
		Version: claimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign jwt: %w", err)
	}

	return IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate verifies signature, algorithm, issuer, audience and expiry, then
// maps the fixed claim schema onto a ClaimSet.
func (m *TokenManager) Validate(tokenStr string) (ClaimSet, error) {
	if tokenStr == "" {
		return ClaimSet{}, ErrInvalidToken
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ClaimSet{}, ErrInvalidToken
	}

	if claims.Version != claimsVersion {
		return ClaimSet{}, fmt.Errorf("%w: unsupported claims version %d", ErrInvalidToken, claims.Version)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return ClaimSet{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role := models.UserRole(claims.Role)
	if !role.Valid() {
		return ClaimSet{}, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}

	set := ClaimSet{
		UserID:  userID,
		Role:    role,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		set.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		set.ExpiresAt = claims.ExpiresAt.Time
	}
	return set, nil
}
