package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/iocontext"
)

// loginServer accepts alice/secret and issues session=s3cr3t-cookie.
func loginServer(t *testing.T, logouts *int32) *httptest.Server {
	t.Helper()
	handler := newRouteHandler().
		On("POST", "/login", func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<form>Invalid credentials</form>"))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t-cookie", Path: "/"})
			http.Redirect(w, r, "/", http.StatusFound)
		}).
		On("GET", "/logout", func(w http.ResponseWriter, r *http.Request) {
			if logouts != nil {
				atomic.AddInt32(logouts, 1)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
		})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func withStdin(input string) context.Context {
	return iocontext.WithIO(context.Background(), &iocontext.IO{In: strings.NewReader(input)})
}

func TestAuthLoginStoresProfile(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	server := loginServer(t, nil)

	output := captureStdout(t, func() {
		err := Execute(withStdin("secret\n"), []string{"auth", "login", "--url", server.URL + "/", "--username", "alice", "--password-stdin"})
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
	})

	if !strings.Contains(output, "Logged in as alice") {
		t.Errorf("unexpected output:\n%s", output)
	}
	account, err := config.LoadProfile("default")
	if err != nil {
		t.Fatalf("profile not saved: %v", err)
	}
	if account.BaseURL != server.URL {
		t.Errorf("base URL = %q, want %q", account.BaseURL, server.URL)
	}
	if account.SessionCookie != "session=s3cr3t-cookie" {
		t.Errorf("session cookie = %q", account.SessionCookie)
	}
}

func TestAuthLoginPromptsForPassword(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	server := loginServer(t, nil)

	var stderr string
	_ = captureStdout(t, func() {
		stderr = captureStderr(t, func() {
			err := Execute(withStdin("secret\n"), []string{"auth", "login", "--url", server.URL, "--user", "alice", "--profile", "work"})
			if err != nil {
				t.Fatalf("login failed: %v", err)
			}
		})
	})

	if !strings.Contains(stderr, "Password: ") {
		t.Errorf("expected a password prompt on stderr, got %q", stderr)
	}
	if current, _ := config.CurrentProfile(); current != "work" {
		t.Errorf("current profile = %q, want work", current)
	}
}

func TestAuthLoginEnvFile(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	server := loginServer(t, nil)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "CHATPULSE_BASE_URL=" + server.URL + "\nCHATPULSE_USERNAME=alice\nCHATPULSE_PASSWORD=secret\nCHATPULSE_PROFILE=lab\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"auth", "login", "--env-file", envFile, "-o", "json"}); err != nil {
			t.Fatalf("login failed: %v", err)
		}
	})

	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if result["authenticated"] != true || result["profile"] != "lab" || result["username"] != "alice" {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestAuthLoginBadPassword(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	server := loginServer(t, nil)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(withStdin("wrong"), []string{"auth", "login", "--url", server.URL, "--username", "alice", "--password-stdin"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := ExitCode(err); code != exitAuth {
		t.Errorf("exit code = %d, want %d", code, exitAuth)
	}
	if !strings.Contains(stderr, "invalid username or password") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := config.LoadProfile("default"); err == nil {
		t.Error("a failed login must not store a profile")
	}
}

func TestAuthLoginValidation(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing url", []string{"auth", "login", "--username", "alice"}, "--url is required"},
		{"missing username", []string{"auth", "login", "--url", "http://chat.local"}, "--username is required"},
		{"bad scheme", []string{"auth", "login", "--url", "ftp://chat.local", "--username", "alice"}, "scheme must be http or https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			_ = captureStderr(t, func() {
				err = Execute(withStdin("secret\n"), tt.args)
			})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestAuthStatusNotAuthenticated(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"auth", "status"}); err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})
	if !strings.Contains(output, "Not authenticated.") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestAuthStatusFromKeychain(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	if err := config.SaveProfile("default", config.Account{
		BaseURL:       "https://chat.example.com",
		Username:      "alice",
		SessionCookie: "session=abcdefghijkl",
	}); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"auth", "status", "--json"}); err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})

	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if result["authenticated"] != true || result["source"] != "keychain" || result["profile"] != "default" {
		t.Errorf("unexpected result: %v", result)
	}
	if session, _ := result["session"].(string); strings.Contains(session, "abcdefghijkl") {
		t.Errorf("session cookie not masked: %q", session)
	}
}

func TestAuthStatusFromEnv(t *testing.T) {
	setupTestEnvWithHandler(t, chatServer())

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"auth", "status"}); err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})
	if !strings.Contains(output, "Username: alice") || !strings.Contains(output, "Source: env") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestAuthLogout(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)
	var logouts int32
	server := loginServer(t, &logouts)
	if err := config.SaveProfile("default", config.Account{
		BaseURL:       server.URL,
		Username:      "alice",
		SessionCookie: "session=s3cr3t-cookie",
	}); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"auth", "logout"}); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
	})

	if !strings.Contains(output, "Logged out of "+server.URL) {
		t.Errorf("unexpected output:\n%s", output)
	}
	if atomic.LoadInt32(&logouts) != 1 {
		t.Errorf("server logout calls = %d, want 1", logouts)
	}
	if _, err := config.LoadProfile("default"); err == nil {
		t.Error("profile should be deleted")
	}
}

func TestAuthLogoutNotLoggedIn(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"auth", "logout", "--profile", "ghost"})
	})
	if err == nil || !strings.Contains(err.Error(), `profile "ghost" is not logged in`) {
		t.Errorf("err = %v", err)
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"short":        "*****",
		"abcdefgh":     "abcdefgh",
		"abcdefghijkl": "abcd****ijkl",
	}
	for in, want := range tests {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
