package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal types.
const (
	PrincipalUser = "user"
	PrincipalNode = "node"
)

// Principal represents the authenticated identity making the request: a
// panel user holding a session token or a node daemon holding its token.
type Principal struct {
	Type      string
	UserID    int64
	RootAdmin bool
	NodeID    int64
}

// Authenticate returns an HTTP middleware that requires a panel session
// token in the Authorization header. On success a user Principal is attached
// to the request context.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}
			p, err := authSvc.ValidateJWT(r.Context(), token)
			if errors.Is(err, service.ErrTokenExpired) {
				writeAuthError(w, http.StatusUnauthorized, "Session expired")
				return
			}
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			principal := &Principal{
				Type:      PrincipalUser,
				UserID:    p.UserID,
				RootAdmin: p.RootAdmin,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateNode returns an HTTP middleware for the endpoints daemons call
// back into. The bearer token must match a registered node.
func AuthenticateNode(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Node token required")
				return
			}
			p, err := authSvc.ValidateNodeToken(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid node token")
				return
			}
			principal := &Principal{Type: PrincipalNode, NodeID: p.NodeID}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that enforces root admin access.
// It must be used after Authenticate in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || principal.Type != PrincipalUser || !principal.RootAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
