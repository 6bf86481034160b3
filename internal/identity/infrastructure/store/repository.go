package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront/internal/identity/domain"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

const (
	usersCollection  = "users"
	emailsCollection = "user_emails"
)

// emailClaim reserves a normalised email. Its id is the email itself, so the
// store's id uniqueness enforces one account per address.
type emailClaim struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

type Repository struct {
	log    *slog.Logger
	users  *docstore.Collection[domain.User]
	emails *docstore.Collection[emailClaim]
}

func NewRepository(log *slog.Logger, store docstore.Store) *Repository {
	return &Repository{
		log:    log,
		users:  docstore.NewCollection[domain.User](store, usersCollection),
		emails: docstore.NewCollection[emailClaim](store, emailsCollection),
	}
}

func (r *Repository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.ID = docstore.NewID()
	if _, err := r.emails.Insert(ctx, u.Email, emailClaim{UserID: u.ID}); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("claim email: %w", err)
	}
	if _, err := r.users.Insert(ctx, u.ID, u); err != nil {
		if _, delErr := r.emails.Delete(ctx, u.Email); delErr != nil {
			r.log.Error("release email claim failed", "err", delErr)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) ByEmail(ctx context.Context, email string) (domain.User, error) {
	claim, err := r.emails.Get(ctx, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.ByID(ctx, claim.UserID)
}

func (r *Repository) ByID(ctx context.Context, id string) (domain.User, error) {
	u, err := r.users.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

func (r *Repository) SetAdmin(ctx context.Context, id string) error {
	ok, err := r.users.UpdateByID(ctx, id, docstore.Mutation{Set: map[string]any{
		"is_admin":   true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}
