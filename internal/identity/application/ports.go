package application

import (
	"context"
	"time"

	"github.com/dmehra2102/storefront/internal/identity/domain"
)

type UserRepository interface {
	// Create fails with domain.ErrEmailTaken when the normalised email exists.
	Create(ctx context.Context, u domain.User) (domain.User, error)
	ByEmail(ctx context.Context, email string) (domain.User, error)
	ByID(ctx context.Context, id string) (domain.User, error)
	SetAdmin(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type TokenIssuer interface {
	Issue(subject string) (token string, expiresAt time.Time, err error)
	Subject(token string) (string, error)
}
