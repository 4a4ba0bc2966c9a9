// Package auth issues and verifies the bearer tokens that identify the
// acting user on HTTP and WebSocket requests.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// UserLookup resolves a token subject to a user.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Service signs and validates HS256 tokens carrying a user_id claim.
type Service struct {
	jwtSecret []byte
	users     UserLookup
	ttl       time.Duration
}

func NewService(jwtSecret []byte, users UserLookup) *Service {
	return &Service{jwtSecret: jwtSecret, users: users, ttl: DefaultTokenTTL}
}

// SetTTL changes the lifetime of tokens issued from now on.
func (s *Service) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

// IssueToken signs a token for user.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies tokenString and returns its user_id claim.
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.Unauthorized("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.Unauthorized("invalid user_id in token")
	}
	return userID, nil
}

// ValidateToken verifies tokenString and loads the user it names.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if errors.IsCode(err, errors.ErrNotFound) {
		return nil, errors.Unauthorized("user no longer exists")
	}
	return user, err
}

// TokenFromRequest reads a bearer token from the Authorization header,
// falling back to the token query parameter that browsers use for
// WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
