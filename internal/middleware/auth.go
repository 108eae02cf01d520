package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
)

// ContextKeyUser is the Gin context key for the signed-in user.
const ContextKeyUser = "user"

// SessionSource reports the signed-in user of a valid session.
type SessionSource interface {
	User() (*model.User, bool)
}

// RequireSession rejects API calls without a valid session and stores the user
// in the context.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := src.User()
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// RequireRole allows the request only for the given roles. It must run after RequireSession.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}

// GetUser retrieves the user stored by RequireSession.
func GetUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}
