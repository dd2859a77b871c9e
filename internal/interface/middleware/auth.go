package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opentube/opentube/internal/domain/entity"
	repo "github.com/opentube/opentube/internal/domain/repository"
	"github.com/opentube/opentube/pkg/helpers"
	"github.com/opentube/opentube/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxUserKey   = "currentUser"
)

// Auth is the request gate for protected routes. It resolves the bearer
// credential to a live user or rejects with 401. The credential comes from
// the accessToken cookie or an Authorization: Bearer header; a refresh
// token is never accepted here — refreshing is an explicit client action.
func Auth(users repo.UserRepository, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxUserKey, u.Public())
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if t, err := c.Cookie(helpers.AccessTokenCookie); err == nil && t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// CurrentUser returns the identity attached by Auth, or nil outside a
// gated route.
func CurrentUser(c *gin.Context) *entity.PublicUser {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*entity.PublicUser)
	return u
}
