package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
	"github.com/noah-isme/course-reg-api/pkg/response"
)

// Self lets a user through when the :username route parameter names them.
const Self = "SELF"

// RBAC enforces domain-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedDomains := make(map[models.Domain]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedDomains[models.Domain(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedDomains[claims.Domain]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if target := c.Param("username"); target != "" && target == claims.Username {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireDomains is a helper that accepts a list of domains.
func RequireDomains(domains ...models.Domain) gin.HandlerFunc {
	allowed := make([]string, len(domains))
	for i, d := range domains {
		allowed[i] = string(d)
	}
	return RBAC(allowed...)
}
