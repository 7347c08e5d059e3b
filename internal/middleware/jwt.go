package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minimeet/backend/internal/auth"
	"github.com/minimeet/backend/pkg/response"
)

// Gin context keys set by JWT. The user id is stored as uuid.UUID and the role as models.Role.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextUserName = "user_name"
)

// JWT authenticates the Authorization: Bearer header and puts the caller's claims in the context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		claims, err := jwtService.Validate(token)
		if errors.Is(err, auth.ErrTokenExpired) {
			response.Abort(c, http.StatusUnauthorized, "token expired")
			return
		}
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserName, claims.Name)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
