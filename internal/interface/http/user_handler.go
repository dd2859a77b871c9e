package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opentube/opentube/internal/application"
	"github.com/opentube/opentube/internal/interface/middleware"
	"github.com/opentube/opentube/pkg/helpers"
	"github.com/opentube/opentube/pkg/response"
	"github.com/opentube/opentube/pkg/validation"
)

type UserHandler struct {
	Svc     *application.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewUserHandler(svc *application.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerForm struct {
	Username string `form:"username" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	FullName string `form:"full_name" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Register handles the multipart registration form. The avatar file is
// required, the cover image optional; both are staged to a temp file so the
// storage collaborator can stream them.
func (h *UserHandler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	avatarPath, cleanupAvatar, err := h.stageUpload(c, "avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	defer cleanupAvatar()

	coverPath, cleanupCover, err := h.stageUpload(c, "cover_image")
	if err == nil {
		defer cleanupCover()
	} else {
		coverPath = "" // cover is optional
	}

	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Username:   form.Username,
		Email:      form.Email,
		FullName:   form.FullName,
		Password:   form.Password,
		AvatarPath: avatarPath,
		CoverPath:  coverPath,
	})
	if err != nil {
		h.fail(c, err, "registration failed")
		return
	}
	response.Success(c, http.StatusCreated, u, "user registered")
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.fail(c, err, "login failed")
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user":               u,
		"access_token":       pair.AccessToken,
		"refresh_token":      pair.RefreshToken,
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	}, "login successful")
}

// Refresh rotates the token pair. The refresh token comes from the cookie
// or, for non-browser clients, the request body.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	pair, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err, "refresh failed")
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"access_token":       pair.AccessToken,
		"refresh_token":      pair.RefreshToken,
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	}, "token refreshed")
}

func (h *UserHandler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Svc.Logout(c.Request.Context(), uid); err != nil {
		h.fail(c, err, "logout failed")
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out")
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword); err != nil {
		h.fail(c, err, "password change failed")
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password changed")
}

func (h *UserHandler) CurrentUser(c *gin.Context) {
	u := middleware.CurrentUser(c)
	if u == nil {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	response.Success(c, http.StatusOK, u, "current user")
}

// fail maps service errors onto the HTTP taxonomy. All session and identity
// failures collapse to a single 401 message so callers cannot probe which
// check failed.
func (h *UserHandler) fail(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, application.ErrValidation):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, application.ErrDuplicateUser):
		response.Error[any](c, http.StatusConflict, "user with email or username already exists", nil)
	case errors.Is(err, application.ErrUserNotFound),
		errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrMissingToken),
		errors.Is(err, helpers.ErrTokenInvalid),
		errors.Is(err, helpers.ErrTokenExpired):
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).Error(logMsg)
		}
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

// stageUpload writes the named multipart file into the OS temp dir and
// returns its path with a cleanup func.
func (h *UserHandler) stageUpload(c *gin.Context, field string) (string, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	dst := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", nil, err
	}
	return dst, func() { _ = os.Remove(dst) }, nil
}
