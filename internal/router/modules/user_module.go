package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opentube/opentube/internal/container"
	repo "github.com/opentube/opentube/internal/domain/repository"
	handlers "github.com/opentube/opentube/internal/interface/http"
	"github.com/opentube/opentube/internal/interface/middleware"
	"github.com/opentube/opentube/pkg/helpers"
)

// UserModule wires the auth endpoints.
// Public: POST /api/users/register, /api/users/login, /api/users/refresh-token
// Gated:  POST /api/users/logout, /api/users/change-password, GET /api/users/current-user

type UserModule struct {
	Handler *handlers.UserHandler
	Users   repo.UserRepository
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, users repo.UserRepository, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, Users: users, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Brute-force protection on the public auth endpoints.
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIP())
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP())
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP())

	rg.POST("/users/register", registerLimiter, m.Handler.Register)
	rg.POST("/users/login", loginLimiter, m.Handler.Login)
	rg.POST("/users/refresh-token", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Users, m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID()))
	{
		auth.POST("/users/logout", m.Handler.Logout)
		auth.POST("/users/change-password", m.Handler.ChangePassword)
		auth.GET("/users/current-user", m.Handler.CurrentUser)
	}
}
