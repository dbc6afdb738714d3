package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnknownCommandSuggestion(t *testing.T) {
	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"conversatons"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, `Did you mean "conversations"?`) {
		t.Errorf("stderr = %q", stderr)
	}
	if code := ExitCode(err); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestUnknownFlagSuggestion(t *testing.T) {
	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"unread", "--al"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, `Did you mean "--all"?`) {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(stderr, `Run "chatpulse unread --help"`) {
		t.Errorf("stderr should point at the command's help: %q", stderr)
	}
}

func TestJSONConflictsWithTextOutput(t *testing.T) {
	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"version", "--json", "--output", "text"})
	})
	if err == nil || !strings.Contains(err.Error(), "--json conflicts with --output text") {
		t.Errorf("err = %v", err)
	}
}

func TestQueryRequiresJSONWhenTextIsExplicit(t *testing.T) {
	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"version", "-o", "text", "--query", ".version"})
	})
	if err == nil || !strings.Contains(err.Error(), "require --output json") {
		t.Errorf("err = %v", err)
	}
}

func TestQueryImpliesJSON(t *testing.T) {
	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"version", "--jq", ".version"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != `"dev"` {
		t.Errorf("output = %q", output)
	}
}

func TestOutputEnvDefault(t *testing.T) {
	t.Setenv("CHATPULSE_OUTPUT", "ndjson")

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"version"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	var v map[string]string
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		t.Fatalf("ndjson env should select JSON lines, got %q", output)
	}
}

func TestNegativeTimeoutRejected(t *testing.T) {
	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"version", "--timeout", "-1s"})
	})
	if err == nil || !strings.Contains(err.Error(), "--timeout must be >= 0") {
		t.Errorf("err = %v", err)
	}
}

func TestTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.tmpl")
	if err := os.WriteFile(path, []byte("v={{.version}}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"version", "--template", "@" + path}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != "v=dev" {
		t.Errorf("output = %q", output)
	}
}

func TestLoadTemplateMissingFile(t *testing.T) {
	if _, err := loadTemplate("@" + filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error")
	}
	if _, err := loadTemplate("@"); err == nil {
		t.Error("expected error for empty path")
	}
	if got, err := loadTemplate("{{.x}}"); err != nil || got != "{{.x}}" {
		t.Errorf("inline template = %q, %v", got, err)
	}
}

func TestNotConfiguredError(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"unread"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := ExitCode(err); code != exitAuth {
		t.Errorf("exit code = %d, want %d", code, exitAuth)
	}
	if !strings.Contains(stderr, "chatpulse auth login") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestErrorPayloadInJSONMode(t *testing.T) {
	clearAccountEnv(t)
	useSharedKeyring(t)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"unread", "--json"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var payload errorPayload
	if jsonErr := json.Unmarshal([]byte(stderr), &payload); jsonErr != nil {
		t.Fatalf("stderr is not a JSON error payload: %q", stderr)
	}
	if payload.Code != exitAuth || payload.Error == "" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestQuietSuppressesTextOutput(t *testing.T) {
	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"version", "--quiet"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	if output != "" {
		t.Errorf("quiet output = %q", output)
	}
}

func TestVersionText(t *testing.T) {
	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"version"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != "chatpulse version dev" {
		t.Errorf("output = %q", output)
	}
}

func TestVersionJSON(t *testing.T) {
	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"v", "-o", "json"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	var v map[string]string
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if v["version"] != "dev" || !strings.HasPrefix(v["go"], "go") {
		t.Errorf("version payload = %v", v)
	}
}

func TestDotEnvLoadedFromConfigDir(t *testing.T) {
	handler := chatServer()
	env := setupTestEnvWithHandler(t, handler)

	// Credentials come only from <config dir>/.env.
	t.Setenv("CHATPULSE_BASE_URL", "")
	t.Setenv("CHATPULSE_USERNAME", "")
	t.Setenv("CHATPULSE_SESSION", "")
	_ = os.Unsetenv("CHATPULSE_BASE_URL")
	_ = os.Unsetenv("CHATPULSE_USERNAME")
	_ = os.Unsetenv("CHATPULSE_SESSION")

	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	dir := filepath.Join(configHome, "chatpulse")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	content := "CHATPULSE_BASE_URL=" + env.server.URL + "\nCHATPULSE_USERNAME=alice\nCHATPULSE_SESSION=session=x\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("CHATPULSE_BASE_URL")
		_ = os.Unsetenv("CHATPULSE_USERNAME")
		_ = os.Unsetenv("CHATPULSE_SESSION")
	})

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})
	if !strings.Contains(output, "Chats: 2  Groups: 3") {
		t.Errorf("unexpected output:\n%s", output)
	}
}
