package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/store"
)

const (
	minUsername = 3
	maxUsername = 150
	minPassword = 8
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// CartMerger folds an anonymous cart into a user's cart.
type CartMerger interface {
	MergeSessionCart(ctx context.Context, sessionKey string, userID int64) error
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// AccountService registers and authenticates users.
type AccountService struct {
	users  store.UserStorer
	hasher PasswordHasher
	merger CartMerger
	logger zerolog.Logger
}

// NewAccountService creates an AccountService. merger may be nil.
func NewAccountService(users store.UserStorer, hasher PasswordHasher, merger CartMerger, logger zerolog.Logger) *AccountService {
	return &AccountService{users: users, hasher: hasher, merger: merger, logger: logger.With().Str("component", "account").Logger()}
}

func validateRegistration(in RegisterInput) error {
	n := utf8.RuneCountInString(in.Username)
	switch {
	case n < minUsername || n > maxUsername:
		return domain.NewError(domain.KindValidation, "Username must be between %d and %d characters.", minUsername, maxUsername)
	case strings.ContainsAny(in.Username, " \t\n"):
		return domain.NewError(domain.KindValidation, "Username cannot contain spaces.")
	case in.Email == "":
		return domain.NewError(domain.KindValidation, "Email is required.")
	case len(in.Password) < minPassword:
		return domain.NewError(domain.KindValidation, "Password must be at least %d characters.", minPassword)
	case in.Password != in.PasswordConfirm:
		return domain.NewError(domain.KindValidation, "The two password fields didn't match.")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.WrapError(domain.KindValidation, err, "Enter a valid email address.")
	}
	return nil
}

// Register creates an account and merges the visitor's anonymous cart into it.
func (s *AccountService) Register(ctx context.Context, in RegisterInput, sessionKey string) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service: Register hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, &domain.User{Username: in.Username, Email: in.Email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			return nil, domain.WrapError(domain.KindConflict, err, "A user with that username already exists.")
		}
		return nil, fmt.Errorf("service: Register: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	s.merge(ctx, sessionKey, user.ID)
	return user, nil
}

// Login verifies credentials and merges the visitor's anonymous cart.
func (s *AccountService) Login(ctx context.Context, username, password, sessionKey string) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.WrapError(domain.KindUnauthenticated, err, "Invalid username or password.")
		}
		return nil, fmt.Errorf("service: Login: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.NewError(domain.KindUnauthenticated, "Invalid username or password.")
	}
	s.merge(ctx, sessionKey, user.ID)
	return user, nil
}

// merge never fails authentication; a failed merge leaves the anonymous cart
// in place and is logged.
func (s *AccountService) merge(ctx context.Context, sessionKey string, userID int64) {
	if s.merger == nil || sessionKey == "" {
		return
	}
	if err := s.merger.MergeSessionCart(ctx, sessionKey, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("cart merge failed")
	}
}

// GetUser loads an account by id.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "User not found.")
		}
		return nil, fmt.Errorf("service: GetUser: %w", err)
	}
	return user, nil
}
