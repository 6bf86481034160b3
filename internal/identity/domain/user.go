package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/storefront/pkg/apperr"
)

var (
	ErrValidation         = apperr.New(apperr.Validation, "invalid user input")
	ErrEmailTaken         = apperr.New(apperr.Conflict, "email already registered")
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "incorrect email or password")
	ErrUnauthenticated    = apperr.New(apperr.Unauthorized, "could not validate credentials")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "user not found")
)

// User is the stored account. PasswordHash never leaves the service; use
// Public for responses.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FullName     *string   `json:"full_name"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  *string   `json:"full_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func (u User) Caller() Caller { return Caller{ID: u.ID, IsAdmin: u.IsAdmin} }

// NormalizeEmail is the key used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
