package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/99designs/keyring"

	"github.com/chatpulse/chatpulse-cli/internal/config"
)

// captureStdout runs fn and returns what it wrote to os.Stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// captureStderr runs fn and returns what it wrote to os.Stderr.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	_ = w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testEnv is a mock chat server plus the environment pointing at it.
type testEnv struct {
	t      *testing.T
	server *httptest.Server
}

// setupTestEnvWithHandler starts handler as the chat server and signs the
// CLI in through CHATPULSE_* variables as user "alice". The cache lives in a
// per-test directory. Everything is restored on cleanup.
func setupTestEnvWithHandler(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("CHATPULSE_BASE_URL", server.URL)
	t.Setenv("CHATPULSE_USERNAME", "alice")
	t.Setenv("CHATPULSE_SESSION", "session=test-cookie")
	t.Setenv("CHATPULSE_PROFILE", "")
	t.Setenv("CHATPULSE_OUTPUT", "text")
	t.Setenv("CHATPULSE_CACHE_DIR", t.TempDir())
	t.Setenv("CHATPULSE_NO_CACHE", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CHATPULSE_UNREAD_SOURCE", "")
	t.Setenv("CHATPULSE_TRANSPORT", "")

	return &testEnv{t: t, server: server}
}

// clearAccountEnv removes every credential variable so the keyring is the
// only source.
func clearAccountEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CHATPULSE_BASE_URL", "CHATPULSE_USERNAME", "CHATPULSE_SESSION", "CHATPULSE_PROFILE"} {
		t.Setenv(key, "")
	}
	t.Setenv("CHATPULSE_OUTPUT", "text")
	t.Setenv("CHATPULSE_CACHE_DIR", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// useSharedKeyring makes every keyring open in this test see the same
// in-memory ring.
func useSharedKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)
}

// jsonResponse returns a handler that replies with body and statusCode.
func jsonResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}
}

// routeHandler routes on the exact "METHOD PATH" pair; unknown routes get
// 404.
type routeHandler struct {
	routes map[string]http.HandlerFunc
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: make(map[string]http.HandlerFunc)}
}

// On registers handler for method and path and returns h for chaining.
func (h *routeHandler) On(method, path string, handler http.HandlerFunc) *routeHandler {
	h.routes[method+" "+path] = handler
	return h
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handler, ok := h.routes[r.Method+" "+r.URL.Path]; ok {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}

// chatServer is a handler with the read endpoints of a small chat server:
// alice, bob (online) and carol, one group "Ops Team" (id 12), with bob
// owing two unread messages and the group three.
func chatServer() *routeHandler {
	return newRouteHandler().
		On("GET", "/users_status", jsonResponse(200, `[
			{"username": "alice", "online": true},
			{"username": "bob", "online": true},
			{"username": "carol", "online": false}
		]`)).
		On("GET", "/api/groups", jsonResponse(200, `[{"id": 12, "name": "Ops Team"}]`)).
		On("GET", "/unread_counts", jsonResponse(200, `{
			"chats": 2,
			"groups": 3,
			"individual_badges": {"bob": 2},
			"group_badges": {"12": 3}
		}`)).
		On("GET", "/search", jsonResponse(200, `{"users": ["carol"], "groups": []}`))
}
