package repository

import (
	"context"
	"errors"

	"github.com/opentube/opentube/internal/domain/entity"
)

var (
	// ErrNotFound indicates that no user matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate indicates a username/email uniqueness violation.
	ErrDuplicate = errors.New("username or email already exists")
)

// UserRepository defines the persistence collaborator for user records.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error)
	// UpdateRefreshToken overwrites the stored refresh token, invalidating
	// any previously issued one.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the stored value. Returns ErrNotFound when the conditional update
	// matched no row, which means the presented token is stale or already
	// rotated.
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) error
	// ClearRefreshToken removes the active session token. Clearing an
	// already-cleared token is not an error.
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
