// Package users is the local identity provider: organizer accounts stored in
// the key-value store with bcrypt password hashes.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventeye/server/internal/auth"
	"github.com/eventeye/server/internal/domain/ids"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken = errors.New("email is already taken")
	// ErrInvalidCredentials does not say whether the email exists.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
)

// BcryptCost is the cost factor for bcrypt password hashing
const BcryptCost = 12

// User is stored under user:{lowercased email}.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Profile is the part of a User that may leave the server.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

type SignupInput struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type Service struct {
	store  kv.Store
	logger zerolog.Logger
	cost   int
	now    func() time.Time
}

func NewService(store kv.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "users").Logger(),
		cost:   BcryptCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Signup creates an active organizer account. The email is claimed with
// SetIfAbsent so concurrent signups for one address cannot both succeed.
func (s *Service) Signup(ctx context.Context, input SignupInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := validation.Struct(input); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := ids.NewUUID()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	user := User{
		ID:           id,
		Name:         input.Name,
		Email:        strings.ToLower(input.Email),
		PasswordHash: string(hash),
		Role:         string(auth.RoleOrganizer),
		Active:       true,
		CreatedAt:    s.now(),
	}

	stored, err := kv.SetJSONIfAbsent(ctx, s.store, kv.UserKey(user.Email), user)
	if err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}
	if !stored {
		return User{}, ErrEmailTaken
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user signed up")
	s.logger.Debug().Str("user_id", user.ID).Str("email", user.Email).Msg("new user email")
	return user, nil
}

// Authenticate checks email and password and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	user, err := kv.GetJSON[User](ctx, s.store, kv.UserKey(email))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.Active {
		return User{}, ErrUserInactive
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := kv.SetJSON(ctx, s.store, kv.UserKey(user.Email), user); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user authenticated")
	return user, nil
}
