package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentube/opentube/internal/domain/entity"
	"github.com/opentube/opentube/internal/domain/repository"
)

var userRows = []string{
	"id", "username", "email", "full_name", "avatar_url", "cover_image_url",
	"password_hash", "refresh_token", "watch_history", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newMockRepo(t)

	// Exactly six bind parameters: watch_history is never sent, a nil
	// []string would encode as NULL and break the NOT NULL default.
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (username, email, full_name, avatar_url, cover_image_url, password_hash)`)).
		WithArgs("alice", "alice@x.com", "Alice Example", "https://cdn/a.png", "", "$2a$10$hash").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("user-1", now, now))

	u := &entity.User{
		Username:     "alice",
		Email:        "alice@x.com",
		FullName:     "Alice Example",
		AvatarURL:    "https://cdn/a.png",
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice", "alice@x.com", "", "", "", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), &entity.User{Username: "alice", Email: "alice@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	refreshTok := "refresh-tok"
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users`)).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userRows).
			AddRow("user-1", "alice", "alice@x.com", "Alice Example", "https://cdn/a.png", "",
				"$2a$10$hash", &refreshTok, []string{"vid-1", "vid-2"}, now, now))

	u, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	require.NotNil(t, u.RefreshToken)
	assert.Equal(t, "refresh-tok", *u.RefreshToken)
	assert.Equal(t, []string{"vid-1", "vid-2"}, u.WatchHistory)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NoSession(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users`)).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userRows).
			AddRow("user-1", "alice", "alice@x.com", "Alice Example", "https://cdn/a.png", "",
				"$2a$10$hash", nil, []string{}, now, now))

	u, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, u.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users`)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsernameOrEmail(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE username = lower($1) OR email = lower($1)`)).
		WithArgs("Alice@X.com").
		WillReturnRows(pgxmock.NewRows(userRows).
			AddRow("user-1", "alice", "alice@x.com", "Alice Example", "https://cdn/a.png", "",
				"$2a$10$hash", nil, []string{}, now, now))

	u, err := repo.GetByUsernameOrEmail(context.Background(), "Alice@X.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateRefreshToken(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET refresh_token = $2`)).
		WithArgs("user-1", "new-tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateRefreshToken(context.Background(), "user-1", "new-tok"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshToken(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND refresh_token = $2`)).
		WithArgs("user-1", "old-tok", "new-tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RotateRefreshToken(context.Background(), "user-1", "old-tok", "new-tok"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshToken_Stale(t *testing.T) {
	mock, repo := newMockRepo(t)

	// The conditional update matches nothing when the stored token has
	// already moved on.
	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND refresh_token = $2`)).
		WithArgs("user-1", "stale-tok", "new-tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.RotateRefreshToken(context.Background(), "user-1", "stale-tok", "new-tok")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ClearRefreshToken_Idempotent(t *testing.T) {
	mock, repo := newMockRepo(t)

	// Clearing an already-cleared token affects zero rows and is still fine.
	mock.ExpectExec(regexp.QuoteMeta(`SET refresh_token = NULL`)).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.ClearRefreshToken(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET password_hash = $2`)).
		WithArgs("missing", "$2a$10$newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), "missing", "$2a$10$newhash")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_PropagatesErrors(t *testing.T) {
	mock, repo := newMockRepo(t)

	boom := errors.New("connection refused")
	mock.ExpectExec(regexp.QuoteMeta(`SET refresh_token = $2`)).
		WithArgs("user-1", "tok").
		WillReturnError(boom)

	err := repo.UpdateRefreshToken(context.Background(), "user-1", "tok")
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
