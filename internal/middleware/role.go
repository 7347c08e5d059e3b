package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/response"
)

// RequireRole allows only the given platform roles. Meeting authority (host,
// co-host) is checked per meeting by the handlers.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		r, ok := role.(models.Role)
		if !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		if _, ok := allowed[r]; !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
