package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ledgerlens/internal/auth"
	"ledgerlens/internal/domain"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyClaims = "claims"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token and injects the user id.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			msg := "invalid token"
			if auth.IsExpired(err) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		c.Set(ContextKeyUserID, claims.UserID())
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": msg},
	})
}

// GetUserID extracts the authenticated user id from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	id, ok := val.(string)
	if !ok || id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}
