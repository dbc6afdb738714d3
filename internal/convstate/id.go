// Package convstate tracks conversation recency and unread badges for a chat
// client session.
//
// A Tracker merges three independent update channels (live push, optimistic
// local sends, periodic authoritative polls) into one ordering and one set of
// unread counts. It is owned by a single goroutine; readers receive copies.
package convstate

import (
	"fmt"
	"strings"
)

// Kind distinguishes direct conversations from group conversations.
type Kind uint8

const (
	KindDirect Kind = iota + 1
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// groupPrefix is the server's room/recipient prefix for group conversations.
const groupPrefix = "group-"

// ID identifies a conversation. Equality is by Kind and Key.
type ID struct {
	Kind Kind
	Key  string // other user's name for direct, group id for group
}

// Direct returns the ID of the direct conversation with user.
func Direct(user string) ID {
	return ID{Kind: KindDirect, Key: strings.TrimSpace(user)}
}

// Group returns the ID of the group conversation with the given group id.
func Group(groupID string) ID {
	return ID{Kind: KindGroup, Key: strings.TrimSpace(groupID)}
}

// Valid reports whether id has a known kind and a non-empty key.
func (id ID) Valid() bool {
	if id.Key == "" {
		return false
	}
	return id.Kind == KindDirect || id.Kind == KindGroup
}

// IsGroup reports whether id refers to a group conversation.
func (id ID) IsGroup() bool { return id.Kind == KindGroup }

// String renders id in the server's recipient notation: "group-<id>" or the
// bare username.
func (id ID) String() string {
	if id.Kind == KindGroup {
		return groupPrefix + id.Key
	}
	return id.Key
}

// MarshalText implements encoding.TextMarshaler so IDs can key JSON maps.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid conversation id %+v", id)
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, ok := ParseRecipient(string(text))
	if !ok {
		return fmt.Errorf("invalid conversation id %q", string(text))
	}
	*id = parsed
	return nil
}

// ParseRecipient converts the server's recipient notation into an ID.
// "group-<id>" is a group; anything else is a direct conversation with that
// user. Comma-separated recipient lists are not accepted here; callers pick
// the partner first.
func ParseRecipient(s string) (ID, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, ",") {
		return ID{}, false
	}
	if rest, ok := strings.CutPrefix(s, groupPrefix); ok {
		id := Group(rest)
		return id, id.Valid()
	}
	id := Direct(s)
	return id, id.Valid()
}
