// Package auth is the administrative identity boundary: admin accounts with
// bcrypt password hashes and HS256 bearer tokens guarding dashboard actions.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAdminNotFound      = errors.New("admin user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AdminUser struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	CreateAdmin(ctx context.Context, user *AdminUser) (*AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error)
}
