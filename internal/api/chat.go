package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
)

// UnreadCounts is the /unread_counts response.
type UnreadCounts struct {
	Chats            int            `json:"chats"`
	Groups           int            `json:"groups"`
	IndividualBadges map[string]int `json:"individual_badges"`
	GroupBadges      map[string]int `json:"group_badges"` // keyed by group id
}

// Snapshot converts the response into a poll snapshot. The server only lists
// conversations with unread messages.
func (u *UnreadCounts) Snapshot() convstate.PollSnapshot {
	snap := make(convstate.PollSnapshot, len(u.IndividualBadges)+len(u.GroupBadges))
	for user, n := range u.IndividualBadges {
		if id := convstate.Direct(user); id.Valid() {
			snap[id] = n
		}
	}
	for gid, n := range u.GroupBadges {
		if id := convstate.Group(gid); id.Valid() {
			snap[id] = n
		}
	}
	return snap
}

// UnreadCounts fetches authoritative unread counts for the session user.
func (c *Client) UnreadCounts(ctx context.Context) (*UnreadCounts, error) {
	var out UnreadCounts
	if err := c.getJSON(ctx, "/unread_counts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchUnread fetches unread counts as a poll snapshot.
func (c *Client) FetchUnread(ctx context.Context) (convstate.PollSnapshot, error) {
	counts, err := c.UnreadCounts(ctx)
	if err != nil {
		return nil, err
	}
	return counts.Snapshot(), nil
}

// MarkRead marks every message in a conversation as read on the server.
func (c *Client) MarkRead(ctx context.Context, id convstate.ID) error {
	form := url.Values{}
	switch id.Kind {
	case convstate.KindDirect:
		form.Set("user", id.Key)
	case convstate.KindGroup:
		form.Set("group_id", id.Key)
	default:
		return fmt.Errorf("mark read: invalid conversation %q", id.String())
	}

	resp, err := c.execute(ctx, request{method: http.MethodPost, path: "/mark_read", form: form, idempotent: true})
	if err != nil {
		return err
	}
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := decodeJSON(resp.body, &result); err != nil {
		return err
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "server refused"
		}
		return fmt.Errorf("mark read %s: %s", id, reason)
	}
	return nil
}

// UserStatus is one entry of /users_status.
type UserStatus struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// UsersStatus lists every user with their presence.
func (c *Client) UsersStatus(ctx context.Context) ([]UserStatus, error) {
	var out []UserStatus
	if err := c.getJSON(ctx, "/users_status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Group is a group the session user belongs to.
type Group struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ConversationID returns the group's conversation identifier.
func (g Group) ConversationID() convstate.ID {
	return convstate.Group(strconv.FormatInt(g.ID, 10))
}

// Groups lists the session user's groups.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := c.getJSON(ctx, "/api/groups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchResult lists conversations with messages matching a query.
type SearchResult struct {
	Users  []string `json:"users"`
	Groups []string `json:"groups"`
}

// IDs returns the matched conversations, directs first.
func (r *SearchResult) IDs() []convstate.ID {
	ids := make([]convstate.ID, 0, len(r.Users)+len(r.Groups))
	for _, u := range r.Users {
		if id := convstate.Direct(u); id.Valid() {
			ids = append(ids, id)
		}
	}
	for _, g := range r.Groups {
		if id := convstate.Group(g); id.Valid() {
			ids = append(ids, id)
		}
	}
	return ids
}

// SearchMessages asks the server which conversations contain q.
func (c *Client) SearchMessages(ctx context.Context, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return &SearchResult{}, nil
	}
	var out SearchResult
	if err := c.getJSON(ctx, "/search", url.Values{"q": {q}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login posts the login form and returns the session cookie as
// "name=value". It also sets c.Cookie.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := c.execute(ctx, request{method: http.MethodPost, path: "/login", form: form, redirectOK: true})
	if err != nil {
		return "", err
	}
	if resp.status < 300 || resp.status >= 400 {
		// The login page is re-rendered with an error on failure.
		return "", &AuthError{Reason: "invalid username or password"}
	}
	cookies := (&http.Response{Header: resp.header}).Cookies()
	if len(cookies) == 0 {
		return "", &AuthError{Reason: "server did not issue a session cookie"}
	}
	sort.SliceStable(cookies, func(i, j int) bool {
		return cookies[i].Name == "session" && cookies[j].Name != "session"
	})
	c.Cookie = cookies[0].Name + "=" + cookies[0].Value
	return c.Cookie, nil
}

// Logout ends the server session. The server always redirects to the
// login page.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.execute(ctx, request{method: http.MethodGet, path: "/logout", idempotent: true, redirectOK: true})
	return err
}
