package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
	ClaimsKey   = "claims"
)

// AuthMiddleware validates the bearer token (or ?token= on websocket upgrades) and rejects revoked tokens.
func AuthMiddleware(tokens *auth.TokenManager, revocations auth.RevocationStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := TokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			log.Error("token_revocation_check_failed", zap.String("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not verify token"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// TokenFromRequest extracts the raw token from the Authorization header or the token query parameter.
func TokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// ClaimsFromContext returns the claims set by AuthMiddleware.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	val, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*auth.Claims)
	return claims, ok
}
