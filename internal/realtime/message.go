package realtime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Event names the server emits.
const (
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
	EventChatCleared    = "chat_cleared"
	EventFileDeleted    = "file_deleted"
	EventGroupDeleted   = "group_deleted"
)

// Envelope is the {event, data} shape shared by every push transport.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Message is the payload of a receive_message event.
type Message struct {
	ID         int64  `json:"id"`
	Sender     string `json:"sender"`
	Recipients string `json:"recipients"`
	Content    string `json:"content,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	GroupID    *int64 `json:"group_id,omitempty"`
}

// DecodeMessage parses a receive_message payload. Sender and recipients are
// required.
func DecodeMessage(data json.RawMessage) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	m.Sender = strings.TrimSpace(m.Sender)
	m.Recipients = strings.TrimSpace(m.Recipients)
	if m.Sender == "" || m.Recipients == "" {
		return Message{}, fmt.Errorf("decode message: missing sender or recipients")
	}
	return m, nil
}

// DecodeEnvelope parses an {event, data} envelope as carried by non-WebSocket
// transports.
func DecodeEnvelope(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Event{}, fmt.Errorf("decode envelope: missing event name")
	}
	return Event{Name: env.Event, Data: env.Data}, nil
}

// ParseTimestamp converts a wire timestamp to unix milliseconds. The server
// sends UTC seconds ("2006-01-02T15:04:05Z"); any RFC 3339 value is accepted.
// ok is false for an empty string.
func ParseTimestamp(s string) (ms int64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, false, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), true, nil
}

// URLFromBase derives the push endpoint from the server base URL:
// http becomes ws, https becomes wss, and the path is /ws.
func URLFromBase(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}
