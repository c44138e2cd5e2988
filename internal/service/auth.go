// Package service holds the authentication core: password hashing, session
// tokens and the single admin identity.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"unicode/utf8"

	"github.com/cabinetdiet/cabinet/internal/model"
)

// MinPasswordLength is the minimum length, in characters, of a new password.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password too short")
)

// AuthService composes the credential store, hasher and token service into
// the login, verify and password change operations.
type AuthService struct {
	creds  *CredentialStore
	hasher *Hasher
	tokens *TokenService
}

func NewAuthService(creds *CredentialStore, hasher *Hasher, tokens *TokenService) *AuthService {
	return &AuthService{creds: creds, hasher: hasher, tokens: tokens}
}

// Login checks the credentials and issues a session token. Wrong usernames
// and wrong passwords both cost one bcrypt comparison and both return
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.Admin, error) {
	admin, err := s.creds.Admin(ctx)
	if err != nil {
		return "", nil, err
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) != 1 {
		s.hasher.VerifyDummy(password)
		return "", nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, admin.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(admin)
	if err != nil {
		return "", nil, err
	}
	return token, admin, nil
}

// ValidateToken verifies a bearer token and returns the identity it carries.
func (s *AuthService) ValidateToken(tokenStr string) (*model.User, error) {
	claims, err := s.tokens.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	u := claims.User()
	return &u, nil
}

// ChangePassword replaces the admin password after checking the current
// one.
func (s *AuthService) ChangePassword(ctx context.Context, current, next string) error {
	if utf8.RuneCountInString(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	admin, err := s.creds.Admin(ctx)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, admin.PasswordHash) {
		return ErrInvalidCredentials
	}
	return s.SetPassword(ctx, next)
}

// SetPassword replaces the admin password without checking the current one.
// It backs the offline CLI reset.
func (s *AuthService) SetPassword(ctx context.Context, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.creds.UpdatePassword(ctx, hash)
}

// Admin returns the identity, creating it on first use.
func (s *AuthService) Admin(ctx context.Context) (*model.Admin, error) {
	return s.creds.Admin(ctx)
}
