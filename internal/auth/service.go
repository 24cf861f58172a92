package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Service struct {
	repo   Repository
	issuer *TokenIssuer
}

func NewService(repo Repository, issuer *TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

var ErrMissingCredentials = errors.New("full name, email and password are required")

// Register creates an admin account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*AdminUser, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.CreateAdmin(ctx, &AdminUser{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.issuer.Issue(created.ID, created.Email)
	if err != nil {
		return nil, "", err
	}
	return created, token, nil
}

// Login checks credentials and returns the admin with a fresh token. Unknown
// email and wrong password both come back as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AdminUser, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
