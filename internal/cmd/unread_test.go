package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestUnreadText(t *testing.T) {
	setupTestEnvWithHandler(t, chatServer())

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})

	if !strings.Contains(output, "Chats: 2  Groups: 3") {
		t.Errorf("missing totals line:\n%s", output)
	}
	if !strings.Contains(output, "CONVERSATION") {
		t.Errorf("missing table header:\n%s", output)
	}
	if !strings.Contains(output, "bob") || !strings.Contains(output, "#Ops Team") {
		t.Errorf("missing unread conversations:\n%s", output)
	}
	if strings.Contains(output, "carol") {
		t.Errorf("carol has nothing unread and should be hidden:\n%s", output)
	}
}

func TestUnreadAllIncludesReadConversations(t *testing.T) {
	setupTestEnvWithHandler(t, chatServer())

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread", "--all"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})
	if !strings.Contains(output, "carol") {
		t.Errorf("--all should list carol:\n%s", output)
	}
	if strings.Contains(output, "alice") {
		t.Errorf("the signed-in user is never a conversation:\n%s", output)
	}
}

func TestUnreadJSON(t *testing.T) {
	setupTestEnvWithHandler(t, chatServer())

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread", "-o", "json"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})

	var report struct {
		Totals struct {
			Chats     int  `json:"chats"`
			Groups    int  `json:"groups"`
			HasUnread bool `json:"has_unread"`
		} `json:"totals"`
		Conversations []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			UnreadCount int    `json:"unread_count"`
			Badge       string `json:"badge"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if report.Totals.Chats != 2 || report.Totals.Groups != 3 {
		t.Errorf("totals = %+v, want chats 2 groups 3", report.Totals)
	}
	if len(report.Conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(report.Conversations))
	}
	byID := map[string]int{}
	for _, c := range report.Conversations {
		byID[c.ID] = c.UnreadCount
	}
	if byID["bob"] != 2 || byID["group-12"] != 3 {
		t.Errorf("unread counts = %v", byID)
	}
}

func TestUnreadQuery(t *testing.T) {
	setupTestEnvWithHandler(t, chatServer())

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread", "--query", ".totals.groups"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != "3" {
		t.Errorf("query output = %q, want 3", output)
	}
}

func TestUnreadNothingUnread(t *testing.T) {
	handler := chatServer().
		On("GET", "/unread_counts", jsonResponse(200, `{"chats": 0, "groups": 0, "individual_badges": {}, "group_badges": {}}`))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"unread"}); err != nil {
			t.Fatalf("unread failed: %v", err)
		}
	})
	if !strings.Contains(output, "Chats: 0  Groups: 0") {
		t.Errorf("missing zero totals:\n%s", output)
	}
	if !strings.Contains(output, "No unread messages.") {
		t.Errorf("missing empty message:\n%s", output)
	}
}

func TestUnreadServerError(t *testing.T) {
	handler := chatServer().
		On("GET", "/unread_counts", jsonResponse(403, `{"error": "forbidden"}`))
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"unread"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := ExitCode(err); code != exitAuth {
		t.Errorf("exit code = %d, want %d", code, exitAuth)
	}
}

func TestBadgeOrZero(t *testing.T) {
	tests := map[int]string{0: "0", -1: "0", 1: "New", 7: "7"}
	for n, want := range tests {
		if got := badgeOrZero(n); got != want {
			t.Errorf("badgeOrZero(%d) = %q, want %q", n, got, want)
		}
	}
}
