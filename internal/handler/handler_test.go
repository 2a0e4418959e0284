package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/daemonkey"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/server/middleware"
	"github.com/pterodactyl/panel/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

type recordingNotifier struct {
	mu      sync.Mutex
	issued  []string
	revoked []string
}

func (n *recordingNotifier) NotifyKeyIssued(_ context.Context, _ model.DaemonEndpoint, secret string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, secret)
	return nil
}

func (n *recordingNotifier) NotifyKeyRevoked(_ context.Context, _ model.DaemonEndpoint, secret string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revoked = append(n.revoked, secret)
	return nil
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *config.Store
	authSvc  *service.AuthService
	users    *service.UserService
	notifier *recordingNotifier
	router   chi.Router
	node     *model.Node
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// chi router with every handler mounted. Authentication middleware is left
// out; tests attach principals directly with doAs.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{}
	opts := daemonkey.Options{Logger: logger}
	issuer := daemonkey.NewIssuer(store, notifier, opts)
	rotator := daemonkey.NewRotator(store, notifier, opts)
	revoker := daemonkey.NewRevoker(store, notifier, logger)
	provider := daemonkey.NewProvider(store, store, issuer, rotator, nil, logger)

	authSvc := service.NewAuthService(store, testJWTSecret, time.Hour)
	users := service.NewUserService(store, revoker, logger)
	admin := NewAdminHandler(store,
		users,
		service.NewNodeService(store, logger),
		service.NewServerService(store, revoker, logger),
		service.NewSubuserService(store, issuer, revoker, logger),
	)
	keys := NewDaemonKeyHandler(store, provider, revoker)
	sessions := NewSessionHandler(authSvc, time.Hour)
	health := NewHealthHandler(store, "test")

	r := chi.NewRouter()
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Post("/api/v1/session", sessions.Login)
	r.Get("/api/v1/servers/{serverID}/daemon-key", keys.GetKey)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Get("/users", admin.ListUsers)
		r.Post("/users", admin.CreateUser)
		r.Delete("/users/{userID}", admin.DeleteUser)
		r.Delete("/users/{userID}/daemon-keys", keys.RevokeUserKeys)
		r.Get("/nodes", admin.ListNodes)
		r.Post("/nodes", admin.CreateNode)
		r.Get("/servers", admin.ListServers)
		r.Post("/servers", admin.CreateServer)
		r.Delete("/servers/{serverID}", admin.DeleteServer)
		r.Get("/servers/{serverID}/subusers", admin.ListSubusers)
		r.Post("/servers/{serverID}/subusers", admin.AddSubuser)
		r.Delete("/subusers/{subuserID}", admin.RemoveSubuser)
	})
	r.Get("/api/remote/keys/{secret}", keys.RemoteLookup)

	node := &model.Node{Name: "node-1", DaemonURL: "http://127.0.0.1:8081", DaemonToken: "node-token-1"}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	return &testEnv{
		store:    store,
		authSvc:  authSvc,
		users:    users,
		notifier: notifier,
		router:   r,
		node:     node,
	}
}

// seedUser creates an account with testPassword.
func (e *testEnv) seedUser(t *testing.T, name string, rootAdmin bool) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), service.CreateUserInput{
		Username:  name,
		Email:     name + "@example.com",
		Password:  testPassword,
		RootAdmin: rootAdmin,
	})
	if err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return u
}

// seedServer creates a server on the default node.
func (e *testEnv) seedServer(t *testing.T, name string, owner *model.User) *model.Server {
	t.Helper()
	s := &model.Server{UUID: "uuid-" + name, Name: name, OwnerID: owner.ID, NodeID: e.node.ID}
	if err := e.store.CreateServer(context.Background(), s); err != nil {
		t.Fatalf("seedServer: %v", err)
	}
	return s
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, nil, method, path, body)
}

// doAs executes a request with principal attached to its context.
func (e *testEnv) doAs(t *testing.T, principal *middleware.Principal, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.AuthPrincipalKey, principal))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func userPrincipal(u *model.User) *middleware.Principal {
	return &middleware.Principal{Type: middleware.PrincipalUser, UserID: u.ID, RootAdmin: u.RootAdmin}
}

func nodePrincipal(n *model.Node) *middleware.Principal {
	return &middleware.Principal{Type: middleware.PrincipalNode, NodeID: n.ID}
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
