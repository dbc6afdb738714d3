// Package realtime is a client for the chat server's WebSocket push channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// DefaultPingTimeout is how long we wait without receiving any frame
// (including server pings) before treating the connection as dead.
// The server pings every 5s, so 20s means ~4 missed pings.
var DefaultPingTimeout = 20 * time.Second

// ErrPingTimeout is returned when no frames are received within the ping timeout.
var ErrPingTimeout = errors.New("ping timeout: no frames received")

// ErrRejected is returned by Join when the server refuses a room.
var ErrRejected = errors.New("join rejected")

// Subprotocol is negotiated on dial.
const Subprotocol = "chatpulse-v1-json"

// frame is a raw wire frame in either direction.
type frame struct {
	Type      string          `json:"type,omitempty"`
	Command   string          `json:"command,omitempty"`
	Room      string          `json:"room,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Reconnect *bool           `json:"reconnect,omitempty"`
}

// DisconnectError is emitted when the server closes the channel on purpose.
type DisconnectError struct {
	Reason    string
	Reconnect bool
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("disconnect (reason=%s, reconnect=%v)", e.Reason, e.Reconnect)
}

// Event is a named server event.
type Event struct {
	Name string          // e.g. receive_message, message_deleted
	Data json.RawMessage // event payload
	Err  error           // non-nil on read error or disconnect
}

// Client is a push channel WebSocket client.
type Client struct {
	conn  *websocket.Conn
	url   string
	rooms []string
}

// maxReadSize caps a single frame at 1 MB.
const maxReadSize = 1 << 20

// Connect dials the push endpoint and waits for the welcome frame. cookie,
// when non-empty, is sent as the session Cookie header.
func Connect(ctx context.Context, url, cookie string) (*Client, error) {
	opts := &websocket.DialOptions{Subprotocols: []string{Subprotocol}}
	if cookie != "" {
		opts.HTTPHeader = http.Header{"Cookie": []string{cookie}}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("read welcome: %w", err)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("parse welcome: %w", err)
	}
	if f.Type != "welcome" {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("expected welcome, got %q (reason: %s)", f.Type, f.Reason)
	}

	return &Client{conn: conn, url: url}, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Rooms returns the rooms joined so far.
func (c *Client) Rooms() []string {
	return append([]string(nil), c.rooms...)
}

// Join asks the server to deliver events for room and waits for the answer.
// Pings arriving before the answer are skipped.
func (c *Client) Join(ctx context.Context, room string) error {
	if err := c.write(ctx, frame{Command: "join", Room: room}); err != nil {
		return fmt.Errorf("write join: %w", err)
	}

	for {
		_, resp, err := c.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read join response: %w", err)
		}

		var f frame
		if err := json.Unmarshal(resp, &f); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}

		switch f.Type {
		case "joined":
			c.rooms = append(c.rooms, room)
			return nil
		case "rejected":
			return fmt.Errorf("%w: room %q: %s", ErrRejected, room, f.Reason)
		case "ping":
			continue
		default:
			return fmt.Errorf("unexpected response type: %q", f.Type)
		}
	}
}

// StartHeartbeat sends heartbeat commands at the given interval until ctx is
// cancelled. If onError is non-nil, it is called once on the first write
// failure before the goroutine exits.
func (c *Client) StartHeartbeat(ctx context.Context, interval time.Duration, onError func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.write(ctx, frame{Command: "heartbeat"}); err != nil {
					if onError != nil && ctx.Err() == nil {
						onError(fmt.Errorf("heartbeat write: %w", err))
					}
					return
				}
			}
		}
	}()
}

// Listen starts the read loop and returns a channel of events.
// The channel closes when the connection drops or ctx is cancelled.
//
// A rolling ping timeout detects half-dead connections: if no frame
// arrives within DefaultPingTimeout, ErrPingTimeout is emitted.
func (c *Client) Listen(ctx context.Context) <-chan Event {
	return c.ListenWithTimeout(ctx, DefaultPingTimeout)
}

// ListenWithTimeout is like Listen but with a configurable ping timeout.
// Use 0 to disable the timeout.
func (c *Client) ListenWithTimeout(ctx context.Context, pingTimeout time.Duration) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		for {
			readCtx := ctx
			var readCancel context.CancelFunc
			if pingTimeout > 0 {
				readCtx, readCancel = context.WithTimeout(ctx, pingTimeout)
			}

			_, data, err := c.conn.Read(readCtx)

			if readCancel != nil {
				readCancel()
			}

			if err != nil {
				if pingTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
					err = ErrPingTimeout
				}
				select {
				case ch <- Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue // skip malformed frames
			}

			switch f.Type {
			case "ping", "joined", "rejected", "welcome":
				continue
			case "disconnect":
				derr := &DisconnectError{Reason: f.Reason, Reconnect: f.Reconnect != nil && *f.Reconnect}
				select {
				case ch <- Event{Err: derr}:
				case <-ctx.Done():
				}
				return
			case "event":
				if f.Event == "" {
					continue
				}
				select {
				case ch <- Event{Name: f.Event, Data: f.Data}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func (c *Client) write(ctx context.Context, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}
