package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapUsers map[string]*models.User

func (m mapUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, errors.NotFound("user")
}

func TestIssueAndValidate(t *testing.T) {
	alice := &models.User{ID: "alice", Email: "alice@example.com"}
	svc := NewService([]byte("secret"), mapUsers{"alice": alice})

	token, expiresAt, err := svc.IssueToken(alice)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), expiresAt, time.Minute)

	got, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ID)

	svc.SetTTL(time.Hour)
	_, expiresAt, err = svc.IssueToken(alice)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
}

func TestValidateRejects(t *testing.T) {
	svc := NewService([]byte("secret"), mapUsers{})

	_, err := svc.ParseToken("invalid.jwt.token")
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	other := NewService([]byte("different"), mapUsers{})
	token, _, err := other.IssueToken(&models.User{ID: "alice"})
	require.NoError(t, err)
	_, err = svc.ParseToken(token)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "alice",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(expired)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "alice"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(noExp)
	assert.Error(t, err)

	// valid signature, unknown user
	token, _, err = svc.IssueToken(&models.User{ID: "ghost"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), token)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", TokenFromRequest(r))

	assert.Empty(t, TokenFromRequest(httptest.NewRequest("GET", "/", nil)))
}
