package auth

import (
	"net/http"
	"strings"

	"chat-relay/domain"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Middleware rejects any call lacking a valid principal before it can touch
// the store. The token travels in the standard "Bearer" header; websocket
// clients that cannot set headers may use the "token" query parameter at
// connection establishment.
func Middleware(authenticator *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.Request)
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is missing"})
			return
		}

		claims, err := authenticator.ValidateToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(principalKey, domain.Principal{UserID: claims.UserID, Roles: claims.Roles})
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// PrincipalFrom retrieves the verified identity injected by Middleware.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if value, ok := c.Get(principalKey); ok {
		if principal, ok := value.(domain.Principal); ok {
			return principal
		}
	}
	return domain.Principal{}
}
