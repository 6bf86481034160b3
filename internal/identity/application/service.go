package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmehra2102/storefront/internal/identity/domain"
)

const (
	minPasswordLen = 6
	maxUsernameLen = 50
)

type Service struct {
	log    *slog.Logger
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time

	dummyOnce sync.Once
	dummy     string
}

func NewService(log *slog.Logger, users UserRepository, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{
		log:    log,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        domain.User
}

func (in RegisterInput) validate() error {
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return fmt.Errorf("%w: email is not a valid address", domain.ErrValidation)
	}
	name := strings.TrimSpace(in.Username)
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d characters", domain.ErrValidation, maxUsernameLen)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	return nil
}

// Register creates a non-admin account. Admin rights are only granted by
// EnsureAdmin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if err := in.validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u, err := s.users.Create(ctx, domain.User{
		Email:        domain.NormalizeEmail(in.Email),
		Username:     strings.TrimSpace(in.Username),
		FullName:     in.FullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user registered", "user_id", u.ID)
	return u, nil
}

// dummyHash keeps the cost of a login for an unknown email close to that of
// a wrong password.
func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummy = h
		}
	})
	return s.dummy
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.ByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.Compare(s.dummyHash(), password)
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{AccessToken: token, TokenType: "bearer", ExpiresAt: exp, User: u}, nil
}

// Authenticate verifies token and re-reads the user it names, so role changes
// and deletions take effect on the next request.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Caller, error) {
	sub, err := s.tokens.Subject(token)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	u, err := s.users.ByID(ctx, sub)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Caller{}, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Caller{}, err
	}
	return u.Caller(), nil
}

func (s *Service) Me(ctx context.Context, caller domain.Caller) (domain.User, error) {
	if caller.ID == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return s.users.ByID(ctx, caller.ID)
}

// EnsureAdmin creates the bootstrap admin, or promotes the existing account
// with that email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	u, err := s.users.ByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case err == nil:
		if u.IsAdmin {
			return nil
		}
		if err := s.users.SetAdmin(ctx, u.ID); err != nil {
			return err
		}
		s.log.Info("bootstrap admin promoted", "user_id", u.ID)
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return err
	}

	username, _, _ := strings.Cut(email, "@")
	u, err = s.Register(ctx, RegisterInput{Email: email, Username: username, Password: password})
	if err != nil {
		return err
	}
	if err := s.users.SetAdmin(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", "user_id", u.ID)
	return nil
}
