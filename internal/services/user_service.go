package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"spendly/internal/auth"
	"spendly/internal/core"
	"spendly/internal/storage"
)

type (
	RegisterInput struct {
		Name     string
		Email    string
		Password string
		Budget   core.Money
	}

	// AuthResult is returned by Register and Login.
	AuthResult struct {
		Token string
		User  core.User
	}

	// ProfilePatch carries the profile fields a user may change.
	ProfilePatch struct {
		Name   *string
		Budget *core.Money
	}
)

// UserService manages accounts and credentials.
type UserService struct {
	users  storage.UserStore
	tokens TokenIssuer
}

func NewUserService(users storage.UserStore, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Register creates an account and signs the caller in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	u := core.User{
		Name:   strings.TrimSpace(in.Name),
		Email:  strings.TrimSpace(in.Email),
		Budget: in.Budget,
	}
	if err := u.Validate(); err != nil {
		return AuthResult{}, err
	}
	if in.Password == "" {
		return AuthResult{}, core.ErrEmptyPassword
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("register: %w", err)
	}
	u.PasswordHash = hash

	u, err = s.users.CreateUser(ctx, u)
	if err != nil {
		return AuthResult{}, fmt.Errorf("register: %w", err)
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID)

	return s.signIn(u)
}

// Login checks the credentials. Unknown emails and wrong passwords are
// reported identically.
func (s *UserService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrNotFound) {
		return AuthResult{}, core.ErrBadCredentials
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "Login rejected", "user_id", u.ID)
		return AuthResult{}, core.ErrBadCredentials
	}
	return s.signIn(u)
}

func (s *UserService) Me(ctx context.Context, userID string) (core.User, error) {
	u, err := s.users.UserByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateProfile replaces the name when a non-blank one is supplied and the
// budget when one is supplied.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, p ProfilePatch) (core.User, error) {
	var name *string
	if p.Name != nil {
		if trimmed := strings.TrimSpace(*p.Name); trimmed != "" {
			name = &trimmed
		}
	}
	if p.Budget != nil && p.Budget.IsNegative() {
		return core.User{}, core.ErrNegativeBudget
	}

	u, err := s.users.UpdateUser(ctx, userID, name, p.Budget)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (s *UserService) signIn(u core.User) (AuthResult, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, User: u}, nil
}
