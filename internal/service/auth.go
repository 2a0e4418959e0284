package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
)

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

// jwtSecretSetting is the settings row holding the generated signing secret
// when none is configured.
const jwtSecretSetting = "auth.jwt_secret"

// UserPrincipal is the authenticated panel user behind a session token.
type UserPrincipal struct {
	UserID    int64
	RootAdmin bool
}

// NodePrincipal is the authenticated node behind a daemon token.
type NodePrincipal struct {
	NodeID int64
	Name   string
}

type AuthService struct {
	store      *config.Store
	jwtSecret  []byte
	sessionTTL time.Duration
}

func NewAuthService(store *config.Store, jwtSecret string, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
	}
}

// Login checks an email/password pair and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueJWT(ctx, user, s.sessionTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}
	return token, user, nil
}

// ValidateJWT verifies a session token and returns the user it was issued to.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*UserPrincipal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidCredentials
	}

	if !token.Valid {
		return nil, ErrInvalidCredentials
	}

	return &UserPrincipal{
		UserID:    claims.UserID,
		RootAdmin: claims.RootAdmin,
	}, nil
}

// IssueJWT creates a new signed session token for the given user.
func (s *AuthService) IssueJWT(ctx context.Context, user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		UserID:    user.ID,
		RootAdmin: user.RootAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "panel",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateNodeToken resolves the node presenting a daemon bearer token.
func (s *AuthService) ValidateNodeToken(ctx context.Context, token string) (*NodePrincipal, error) {
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	node, err := s.store.GetNodeByToken(ctx, token)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(node.DaemonToken), []byte(token)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &NodePrincipal{NodeID: node.ID, Name: node.Name}, nil
}

type jwtClaims struct {
	UserID    int64 `json:"user_id"`
	RootAdmin bool  `json:"root_admin"`
	jwt.RegisteredClaims
}

// SettingsStore is the part of the config store used to persist generated
// secrets.
type SettingsStore interface {
	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
}

// ResolveJWTSecret returns the configured signing secret, or loads one from
// settings, generating and storing it on first use so sessions survive
// restarts.
func ResolveJWTSecret(ctx context.Context, store SettingsStore, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	secret, err := store.GetSetting(ctx, jwtSecretSetting)
	if err == nil && secret != "" {
		return secret, nil
	}
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		return "", fmt.Errorf("load jwt secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	if err := store.SetSetting(ctx, jwtSecretSetting, secret); err != nil {
		return "", fmt.Errorf("store jwt secret: %w", err)
	}
	return secret, nil
}
