package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/service"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Logger middleware tests
// ---------------------------------------------------------------------------

func TestLoggerRedactsRemoteKeyPath(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFrom(r.Context()) == slog.Default() {
			t.Error("expected request-scoped logger in context")
		}
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest("GET", "/api/remote/keys/i_supersecret", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "i_supersecret") {
		t.Errorf("log leaks secret: %s", out)
	}
	if !strings.Contains(out, "status=404") || !strings.Contains(out, "level=WARN") {
		t.Errorf("unexpected log line: %s", out)
	}
	if !strings.Contains(out, "request_id=") {
		t.Errorf("log missing request_id: %s", out)
	}
}

func TestLoggerFromBareContext(t *testing.T) {
	if LoggerFrom(context.Background()) != slog.Default() {
		t.Error("expected slog.Default outside a request")
	}
}

// ---------------------------------------------------------------------------
// Authentication middleware tests
// ---------------------------------------------------------------------------

func newTestAuth(t *testing.T) (*service.AuthService, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return service.NewAuthService(store, "middleware-test-secret", time.Hour), store
}

func TestAuthenticateValidToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	token, err := auth.IssueJWT(context.Background(), &model.User{ID: 9, RootAdmin: true}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	var got *Principal
	handler := Authenticate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got == nil || got.Type != PrincipalUser || got.UserID != 9 || !got.RootAdmin {
		t.Errorf("principal = %+v", got)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	auth, _ := newTestAuth(t)
	handler := Authenticate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not.a.jwt"} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("header %q: content type %q", header, ct)
		}
	}
}

func TestAuthenticateNode(t *testing.T) {
	auth, store := newTestAuth(t)
	node := &model.Node{Name: "n1", DaemonURL: "http://n1:8080", DaemonToken: "node-token"}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	var got *Principal
	handler := AuthenticateNode(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer node-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got == nil || got.Type != PrincipalNode || got.NodeID != node.ID {
		t.Errorf("principal = %+v", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong token, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireAdmin middleware tests
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"root admin", &Principal{Type: PrincipalUser, UserID: 1, RootAdmin: true}, http.StatusOK},
		{"regular user", &Principal{Type: PrincipalUser, UserID: 2}, http.StatusForbidden},
		{"node", &Principal{Type: PrincipalNode, NodeID: 1, RootAdmin: true}, http.StatusForbidden},
		{"unauthenticated", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.principal != nil {
				req = req.WithContext(context.WithValue(req.Context(), AuthPrincipalKey, tt.principal))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Rate limiting tests
// ---------------------------------------------------------------------------

func TestRateLimitByNode(t *testing.T) {
	handler := RateLimitByNode(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(token string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("a"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", code)
	}
	if code := send("b"); code != http.StatusOK {
		t.Errorf("other node should not be limited, got %d", code)
	}
}

func TestRateLimitByNodeDisabled(t *testing.T) {
	handler := RateLimitByNode(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
}

func TestRateLimitByIP(t *testing.T) {
	handler := RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest("POST", "/api/v1/session", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("192.0.2.10:1111"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := send("192.0.2.10:2222"); code != http.StatusTooManyRequests {
		t.Errorf("same IP: expected 429, got %d", code)
	}
	if code := send("192.0.2.11:1111"); code != http.StatusOK {
		t.Errorf("other IP should not be limited, got %d", code)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	auth, _ := newTestAuth(t)
	token, err := auth.IssueJWT(context.Background(), &model.User{ID: 9}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	handler := Authenticate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for an expired session")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Session expired") {
		t.Errorf("body = %s, want session expired message", rr.Body.String())
	}
}
