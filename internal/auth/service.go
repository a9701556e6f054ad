// Package auth signs in the store operator and guards the admin routes.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service checks the operator password against a bcrypt hash and issues
// HS256 tokens carrying the admin role.
type Service struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewService(passwordHash, secret string, ttl time.Duration) *Service {
	return &Service{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// SignIn returns a signed token and its expiry when password matches.
func (s *Service) SignIn(password string) (string, time.Time, error) {
	if len(s.passwordHash) == 0 || password == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"role": RoleAdmin,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// HashPassword is used by the operator to produce ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
