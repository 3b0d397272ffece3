package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"decentra/internal/security"
)

// ContextClaims is the gin context key holding the caller's security.ClaimSet.
const ContextClaims = "auth_claims"

type TokenValidator interface {
	Validate(token string) (security.ClaimSet, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Authenticate resolves the caller from the bearer header or auth cookie.
// It never rejects: requests with a missing, invalid, expired or revoked
// token simply continue as anonymous.
func Authenticate(tokens TokenValidator, revoked RevocationChecker, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := security.ExtractToken(c.Request, cookieName)
		if !ok {
			c.Next()
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			log.Debug().Err(err).Str("request_id", c.GetString(requestIDHeader)).Msg("token rejected")
			c.Next()
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.TokenID)
			if err != nil {
				log.Error().Err(err).Msg("revocation lookup failed")
				c.Next()
				return
			}
			if isRevoked {
				c.Next()
				return
			}
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireAuth short-circuits anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (security.ClaimSet, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return security.ClaimSet{}, false
	}
	claims, ok := v.(security.ClaimSet)
	return claims, ok
}
