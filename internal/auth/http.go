package auth

import (
	"errors"
	"net/http"

	"certificatePortal/internal/common"
	"certificatePortal/models"

	"github.com/gin-gonic/gin"
)

// RequireAuth verifies the bearer token of every request and stores the
// claims in the request context. A missing token is 401, a bad one 403.
func RequireAuth(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticateHeader(gw, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(TokenErrorStatus(err), gin.H{"message": common.Message(err)})
			return
		}
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(gw *Gateway, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := FromContext(c.Request.Context())
		if err := gw.RequireRole(claims, role); err != nil {
			status := http.StatusForbidden
			if errors.Is(err, ErrMissingToken) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"message": common.Message(err)})
			return
		}
		c.Next()
	}
}

// TokenErrorStatus maps a token failure to its HTTP status.
func TokenErrorStatus(err error) int {
	if errors.Is(err, ErrMissingToken) {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func authenticateHeader(gw *Gateway, header string) (*Claims, error) {
	tok, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	return gw.Verify(tok)
}
