package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

func newTestAuth(t *testing.T) (*AuthService, *config.Store) {
	t.Helper()
	store := newTestStore(t)
	auth := NewAuthService(store, "test-secret-key-for-jwt", time.Hour)
	return auth, store
}

func TestJWTRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, &model.User{ID: 42, UUID: "u-42", RootAdmin: true}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	principal, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.UserID != 42 {
		t.Errorf("UserID: got %d, want 42", principal.UserID)
	}
	if !principal.RootAdmin {
		t.Error("RootAdmin: got false, want true")
	}
}

func TestJWTExpired(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, &model.User{ID: 1}, -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	_, err = auth.ValidateJWT(ctx, token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTInvalidToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.ValidateJWT(ctx, "garbage.token.here")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	auth, store := newTestAuth(t)
	other := NewAuthService(store, "a-different-secret", time.Hour)
	ctx := context.Background()

	token, err := other.IssueJWT(ctx, &model.User{ID: 7}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := auth.ValidateJWT(ctx, token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestLogin(t *testing.T) {
	auth, store := newTestAuth(t)
	users := NewUserService(store, nil, discardLogger())
	ctx := context.Background()

	user, err := users.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	token, got, err := auth.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Login user = %d, want %d", got.ID, user.ID)
	}
	principal, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.UserID != user.ID || principal.RootAdmin {
		t.Errorf("principal = %+v", principal)
	}

	if _, _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateNodeToken(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	node := &model.Node{Name: "node-a", DaemonURL: "http://10.0.0.2:8080", DaemonToken: "tok-a"}
	if err := store.CreateNode(ctx, node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	p, err := auth.ValidateNodeToken(ctx, "tok-a")
	if err != nil {
		t.Fatalf("ValidateNodeToken: %v", err)
	}
	if p.NodeID != node.ID || p.Name != "node-a" {
		t.Errorf("principal = %+v", p)
	}

	for _, tok := range []string{"", "tok-b"} {
		if _, err := auth.ValidateNodeToken(ctx, tok); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("token %q: expected ErrInvalidCredentials, got %v", tok, err)
		}
	}
}

func TestResolveJWTSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := ResolveJWTSecret(ctx, store, "configured")
	if err != nil || got != "configured" {
		t.Fatalf("configured secret: got %q, %v", got, err)
	}

	first, err := ResolveJWTSecret(ctx, store, "")
	if err != nil {
		t.Fatalf("ResolveJWTSecret: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("generated secret length = %d, want 64", len(first))
	}
	second, err := ResolveJWTSecret(ctx, store, "")
	if err != nil {
		t.Fatalf("ResolveJWTSecret: %v", err)
	}
	if second != first {
		t.Error("generated secret should be persisted and reused")
	}
}
