package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentube/opentube/internal/domain/entity"
	repo "github.com/opentube/opentube/internal/domain/repository"
	"github.com/opentube/opentube/pkg/helpers"
)

type stubUserRepository struct {
	users map[string]*entity.User
}

func (r *stubUserRepository) Create(context.Context, *entity.User) error {
	return nil
}

func (r *stubUserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (r *stubUserRepository) GetByUsernameOrEmail(context.Context, string) (*entity.User, error) {
	return nil, repo.ErrNotFound
}

func (r *stubUserRepository) UpdateRefreshToken(context.Context, string, string) error { return nil }
func (r *stubUserRepository) RotateRefreshToken(context.Context, string, string, string) error {
	return nil
}
func (r *stubUserRepository) ClearRefreshToken(context.Context, string) error { return nil }
func (r *stubUserRepository) UpdatePassword(context.Context, string, string) error {
	return nil
}

func newGatedRouter(users repo.UserRepository, jwt *helpers.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(users, jwt), func(c *gin.Context) {
		u := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "username": u.Username})
	})
	return r
}

func newGateFixture() (*gin.Engine, *helpers.JWTManager, *entity.User) {
	u := &entity.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@x.com",
		FullName: "Alice Example",
	}
	users := &stubUserRepository{users: map[string]*entity.User{u.ID: u}}
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return newGatedRouter(users, jwt), jwt, u
}

func TestAuth_MissingCredential(t *testing.T) {
	r, _, _ := newGateFixture()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "user_id")
}

func TestAuth_CookieCredential(t *testing.T) {
	r, jwt, u := newGateFixture()
	token, _, err := jwt.GenerateAccessToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
}

func TestAuth_BearerHeaderCredential(t *testing.T) {
	r, jwt, u := newGateFixture()
	token, _, err := jwt.GenerateAccessToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}

func TestAuth_ExpiredToken(t *testing.T) {
	r, _, u := newGateFixture()
	expired := helpers.NewJWTManager("access-secret", "refresh-secret", -time.Minute, 24*time.Hour)
	token, _, err := expired.GenerateAccessToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_RefreshTokenIsNotAccepted(t *testing.T) {
	r, jwt, u := newGateFixture()
	refresh, _, err := jwt.GenerateRefreshToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_DeletedUser(t *testing.T) {
	u := &entity.User{ID: "gone", Username: "ghost"}
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	r := newGatedRouter(&stubUserRepository{users: map[string]*entity.User{}}, jwt)

	token, _, err := jwt.GenerateAccessToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
