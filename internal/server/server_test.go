package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/daemon"
	"github.com/pterodactyl/panel/internal/daemonkey"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

// fakeDaemon records the key calls a node daemon receives.
type fakeDaemon struct {
	mu    sync.Mutex
	calls []string // "POST <key>" or "DELETE <key>"
	srv   *httptest.Server
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	d := &fakeDaemon{}
	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/keys":
			var body struct {
				Key string `json:"key"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			key = body.Key
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/keys/"):
			key = strings.TrimPrefix(r.URL.Path, "/v1/keys/")
		default:
			http.NotFound(w, r)
			return
		}
		d.mu.Lock()
		d.calls = append(d.calls, r.Method+" "+key)
		d.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDaemon) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *config.Store
	authSvc *service.AuthService
	users   *service.UserService
	daemon  *fakeDaemon
	node    *model.Node
}

// newTestEnv creates a fresh test environment with an in-memory store, a
// fake node daemon and a fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := daemon.NewClient(time.Second, "test")
	opts := daemonkey.Options{Logger: logger}
	issuer := daemonkey.NewIssuer(store, notifier, opts)
	rotator := daemonkey.NewRotator(store, notifier, opts)
	revoker := daemonkey.NewRevoker(store, notifier, logger)

	authSvc := service.NewAuthService(store, testJWTSecret, time.Hour)
	users := service.NewUserService(store, revoker, logger)
	deps := Deps{
		Store:    store,
		Auth:     authSvc,
		Provider: daemonkey.NewProvider(store, store, issuer, rotator, nil, logger),
		Revoker:  revoker,
		Users:    users,
		Nodes:    service.NewNodeService(store, logger),
		Servers:  service.NewServerService(store, revoker, logger),
		Subusers: service.NewSubuserService(store, issuer, revoker, logger),
	}

	cfg := DefaultConfig()
	cfg.RemoteRateLimit = 5

	fd := newFakeDaemon(t)
	node := &model.Node{Name: "node-1", DaemonURL: fd.srv.URL, DaemonToken: "node-token-1"}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	return &testEnv{
		server:  New(cfg, deps, logger),
		store:   store,
		authSvc: authSvc,
		users:   users,
		daemon:  fd,
		node:    node,
	}
}

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

// login authenticates through the API and returns the session token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	body := jsonBody(t, map[string]string{"email": email, "password": testPassword})
	rr := e.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"session_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("login: got empty token")
	}
	return resp.Token
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes a request carrying a bearer token.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
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

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rr = env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Authentication boundaries
// ---------------------------------------------------------------------------

func TestAdminRoutesRequireRootAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", true)
	env.seedUser(t, "plain", false)

	rr := env.do(t, "GET", "/api/v1/admin/users", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/v1/admin/users", nil, env.login(t, "plain@example.com"))
	assertStatus(t, rr, http.StatusForbidden)

	rr = env.doAuth(t, "GET", "/api/v1/admin/users", nil, env.login(t, "admin@example.com"))
	assertStatus(t, rr, http.StatusOK)
}

func TestNodeTokenCannotUsePanelAPI(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doAuth(t, "GET", "/api/v1/admin/users", nil, env.node.DaemonToken)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRemoteRequiresNodeToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "plain", false)

	rr := env.do(t, "GET", "/api/remote/keys/i_abc", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/remote/keys/i_abc", nil, env.login(t, "plain@example.com"))
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/remote/keys/i_abc", nil, env.node.DaemonToken)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestRemoteRateLimit(t *testing.T) {
	env := newTestEnv(t)
	var last int
	for i := 0; i < 6; i++ {
		last = env.doAuth(t, "GET", "/api/remote/keys/i_abc", nil, env.node.DaemonToken).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", last)
	}
}

// ---------------------------------------------------------------------------
// End-to-end daemon key flow
// ---------------------------------------------------------------------------

func TestDaemonKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", true)
	env.seedUser(t, "owner", false)
	helper := env.seedUser(t, "helper", false)
	adminToken := env.login(t, "admin@example.com")

	// Admin creates a server for owner.
	owner, err := env.store.GetUserByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	rr := env.doAuth(t, "POST", "/api/v1/admin/servers", jsonBody(t, map[string]interface{}{
		"name": "survival", "owner_id": owner.ID, "node_id": env.node.ID,
	}), adminToken)
	assertStatus(t, rr, http.StatusCreated)
	var srv model.Server
	decodeJSON(t, rr, &srv)

	// Owner fetches a key; the daemon is told about it.
	ownerToken := env.login(t, "owner@example.com")
	keyPath := fmt.Sprintf("/api/v1/servers/%d/daemon-key", srv.ID)
	rr = env.doAuth(t, "GET", keyPath, nil, ownerToken)
	assertStatus(t, rr, http.StatusOK)
	var key struct {
		Key string `json:"key"`
	}
	decodeJSON(t, rr, &key)

	calls := env.daemon.received()
	if len(calls) != 1 || calls[0] != "POST "+key.Key {
		t.Fatalf("daemon calls = %v", calls)
	}

	// The daemon can resolve the key it was given.
	rr = env.doAuth(t, "GET", "/api/remote/keys/"+key.Key, nil, env.node.DaemonToken)
	assertStatus(t, rr, http.StatusOK)

	// A stranger has no access.
	rr = env.doAuth(t, "GET", keyPath, nil, env.login(t, "helper@example.com"))
	assertStatus(t, rr, http.StatusNotFound)

	// Adding helper as subuser issues their key.
	rr = env.doAuth(t, "POST", fmt.Sprintf("/api/v1/admin/servers/%d/subusers", srv.ID),
		jsonBody(t, map[string]string{"email": helper.Email}), adminToken)
	assertStatus(t, rr, http.StatusCreated)
	if got := len(env.daemon.received()); got != 2 {
		t.Errorf("daemon calls = %d, want 2", got)
	}

	// Deleting the server revokes both keys on the daemon.
	rr = env.doAuth(t, "DELETE", fmt.Sprintf("/api/v1/admin/servers/%d", srv.ID), nil, adminToken)
	assertStatus(t, rr, http.StatusNoContent)

	var deletes int
	for _, c := range env.daemon.received() {
		if strings.HasPrefix(c, "DELETE ") {
			deletes++
		}
	}
	if deletes != 2 {
		t.Errorf("daemon DELETE calls = %d, want 2", deletes)
	}

	rr = env.doAuth(t, "GET", "/api/remote/keys/"+key.Key, nil, env.node.DaemonToken)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestDaemonUnreachableStillIssuesKey(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner", false)
	env.daemon.srv.Close()

	srv := &model.Server{UUID: "uuid-x", Name: "x", OwnerID: owner.ID, NodeID: env.node.ID}
	if err := env.store.CreateServer(context.Background(), srv); err != nil {
		t.Fatalf("CreateServer: %v", err)
	}

	rr := env.doAuth(t, "GET", fmt.Sprintf("/api/v1/servers/%d/daemon-key", srv.ID), nil, env.login(t, "owner@example.com"))
	assertStatus(t, rr, http.StatusOK)
}
