package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// generatedPasswordLength is the length of the throwaway password set on
// accounts created without one.
const generatedPasswordLength = 30

// KeyRevoker removes daemon keys when access is withdrawn.
type KeyRevoker interface {
	RevokeAll(ctx context.Context, userID int64) (int64, error)
	RevokeServer(ctx context.Context, serverID int64) (int64, error)
	RevokePair(ctx context.Context, userID, serverID int64) (bool, error)
}

// CreateUserInput holds the fields accepted when creating an account.
type CreateUserInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	RootAdmin bool   `json:"root_admin"`
}

// UserService manages panel accounts.
type UserService struct {
	store   *config.Store
	revoker KeyRevoker
	logger  *slog.Logger
}

func NewUserService(store *config.Store, revoker KeyRevoker, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, revoker: revoker, logger: logger}
}

// Create registers a new account. Without a password a random one is hashed
// and the account must go through a reset before it can log in.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", config.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", config.ErrValidation, in.Email)
	}

	password := in.Password
	if password == "" {
		generated, err := randomPassword(generatedPasswordLength)
		if err != nil {
			return nil, err
		}
		password = generated
	} else if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", config.ErrValidation, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		UUID:         uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		RootAdmin:    in.RootAdmin,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "root_admin", user.RootAdmin)
	return user, nil
}

// Delete removes an account after revoking every daemon key it holds. Users
// who still own servers cannot be deleted.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	owned, err := s.store.CountServersOwnedBy(ctx, user.ID)
	if err != nil {
		return err
	}
	if owned > 0 {
		return fmt.Errorf("%w: user %d still owns %d server(s)", config.ErrValidation, user.ID, owned)
	}

	revoked, err := s.revoker.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", user.ID, "keys_revoked", revoked)
	return nil
}

func randomPassword(n int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
