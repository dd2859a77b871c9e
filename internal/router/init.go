package router

import (
	"github.com/opentube/opentube/internal/application"
	"github.com/opentube/opentube/internal/container"
	repouser "github.com/opentube/opentube/internal/domain/repository"
	pginfra "github.com/opentube/opentube/internal/infrastructure/postgres"
	handlers "github.com/opentube/opentube/internal/interface/http"
	"github.com/opentube/opentube/internal/router/modules"
	"github.com/opentube/opentube/pkg/helpers"
	"github.com/opentube/opentube/pkg/storage"
)

type UserModuleDeps struct {
	Repo    repouser.UserRepository
	Service *application.AuthService
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	media := storage.NewGCSStorage(container.GetGCS(), cfg.GCSBucket, cfg.GCSUploadPrefix)
	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)

	service := application.NewAuthService(
		repo,
		container.GetJWT(),
		hasher,
		media,
		container.GetLogger(),
	)

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return UserModuleDeps{Repo: repo, Service: service, Handler: handler}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewUserModule(userDeps.Handler, userDeps.Repo, container.GetJWT()))
}
