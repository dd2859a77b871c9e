package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opentube/opentube/internal/domain/entity"
	repo "github.com/opentube/opentube/internal/domain/repository"
	"github.com/opentube/opentube/pkg/helpers"
	"github.com/opentube/opentube/pkg/storage"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateUser      = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing token")
)

// AuthService orchestrates the register/login/refresh/logout lifecycle.
// The persisted user row is the single synchronization point: at most one
// refresh token is valid per user, and rotation is a conditional update
// against the stored value.
type AuthService struct {
	Repo   repo.UserRepository
	JWT    *helpers.JWTManager
	Hasher *helpers.PasswordHasher
	Media  storage.MediaStorage
	Logger *logrus.Logger
}

func NewAuthService(r repo.UserRepository, jwt *helpers.JWTManager, hasher *helpers.PasswordHasher, media storage.MediaStorage, logger *logrus.Logger) *AuthService {
	return &AuthService{Repo: r, JWT: jwt, Hasher: hasher, Media: media, Logger: logger}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	// Local paths of the uploaded media files. AvatarPath is required.
	AvatarPath string
	CoverPath  string
}

// Register creates a new user with no active session. Media objects are
// uploaded before the insert; if the insert fails, the uploads are deleted
// best-effort so the failed registration leaves nothing behind remotely.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*entity.PublicUser, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	case email == "":
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	case fullName == "":
		return nil, fmt.Errorf("%w: full name is required", ErrValidation)
	case strings.TrimSpace(in.Password) == "":
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	case in.AvatarPath == "":
		return nil, fmt.Errorf("%w: avatar file is required", ErrValidation)
	}

	for _, identifier := range []string{username, email} {
		if _, err := s.Repo.GetByUsernameOrEmail(ctx, identifier); err == nil {
			return nil, ErrDuplicateUser
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	avatar, err := s.Media.Upload(ctx, in.AvatarPath)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	var cover *storage.UploadResult
	if in.CoverPath != "" {
		cover, err = s.Media.Upload(ctx, in.CoverPath)
		if err != nil {
			s.rollbackUploads(ctx, avatar)
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
	}

	u := &entity.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		AvatarURL:    avatar.URL,
		PasswordHash: hash,
	}
	if cover != nil {
		u.CoverImageURL = cover.URL
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		s.rollbackUploads(ctx, avatar, cover)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return u.Public(), nil
}

// rollbackUploads is the compensating action for a failed registration.
// Its own failures are logged, never returned, so the original error is
// what the caller sees.
func (s *AuthService) rollbackUploads(ctx context.Context, uploads ...*storage.UploadResult) {
	for _, up := range uploads {
		if up == nil {
			continue
		}
		if err := s.Media.Delete(ctx, up.PublicID); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("public_id", up.PublicID).Warn("rollback of uploaded media failed")
		}
	}
}

// Login authenticates by username or email and starts a session. Storing
// the new refresh token overwrites any previous one, so an earlier session
// can no longer refresh.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*entity.PublicUser, TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, TokenPair{}, fmt.Errorf("%w: identifier and password are required", ErrValidation)
	}

	u, err := s.Repo.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrUserNotFound
		}
		return nil, TokenPair{}, err
	}
	if !s.Hasher.Compare(u.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.Repo.UpdateRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return nil, TokenPair{}, err
	}
	return u.Public(), pair, nil
}

// Refresh rotates the refresh token. A presented token that does not equal
// the stored one is reported as invalid, exactly like a bad signature, so
// the caller cannot tell which check failed.
func (s *AuthService) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if presented == "" {
		return TokenPair{}, ErrMissingToken
	}
	claims, err := s.JWT.ParseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}
	if u.RefreshToken == nil || *u.RefreshToken != presented {
		return TokenPair{}, helpers.ErrTokenInvalid
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.Repo.RotateRefreshToken(ctx, u.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Lost the race against a concurrent refresh or logout.
			return TokenPair{}, helpers.ErrTokenInvalid
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// ChangePassword replaces the stored hash after verifying the old password.
// The active refresh token is kept: changing a password does not force the
// user's session out.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.Hasher.Compare(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePassword(ctx, u.ID, hash)
}

// Logout revokes the active refresh token. Logging out an already
// logged-out user is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.Repo.ClearRefreshToken(ctx, userID)
}

// CurrentUser returns the sanitized user for the given id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*entity.PublicUser, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u.Public(), nil
}

func (s *AuthService) issuePair(u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}
