// Package natspush streams chat push events from NATS subjects.
package natspush

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chatpulse/chatpulse-cli/internal/realtime"
)

const (
	subjectPrefix = "chat."
	subjectSuffix = ".events"
)

// SubjectForRoom maps a push room to its NATS subject:
// "alice" -> chat.user.alice.events, "group-7" -> chat.group.7.events.
func SubjectForRoom(room string) string {
	if id, ok := strings.CutPrefix(room, "group-"); ok {
		return subjectPrefix + "group." + id + subjectSuffix
	}
	return subjectPrefix + "user." + room + subjectSuffix
}

// Source streams events from a NATS server.
type Source struct {
	URL           string
	Name          string
	MaxReconnects int // 0 means nats default, negative retries forever
	ReconnectWait time.Duration
	Logger        *slog.Logger
}

// Stream connects, subscribes to one subject per room, and returns the event
// channel. The channel closes when ctx is cancelled or the connection is
// closed for good; in the latter case the final event carries the error.
func (s *Source) Stream(ctx context.Context, rooms []string) (<-chan realtime.Event, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	closed := make(chan struct{})
	opts := []nats.Option{
		nats.MaxReconnects(s.maxReconnects()),
		nats.ReconnectWait(s.reconnectWait()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Debug("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Debug("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	}
	if s.Name != "" {
		opts = append(opts, nats.Name(s.Name))
	}

	nc, err := nats.Connect(s.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	msgs := make(chan *nats.Msg, 64)
	for _, room := range rooms {
		subject := SubjectForRoom(room)
		if _, err := nc.ChanSubscribe(subject, msgs); err != nil {
			nc.Close()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}

	out := make(chan realtime.Event, 64)
	go func() {
		defer close(out)
		defer nc.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-closed:
				select {
				case out <- realtime.Event{Err: fmt.Errorf("nats connection closed: %w", nats.ErrConnectionClosed)}:
				case <-ctx.Done():
				}
				return
			case msg := <-msgs:
				ev, err := toEvent(msg.Data)
				if err != nil {
					logger.Debug("dropping nats message", "subject", msg.Subject, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Source) maxReconnects() int {
	if s.MaxReconnects != 0 {
		return s.MaxReconnects
	}
	return nats.DefaultMaxReconnect
}

func (s *Source) reconnectWait() time.Duration {
	if s.ReconnectWait > 0 {
		return s.ReconnectWait
	}
	return nats.DefaultReconnectWait
}

func toEvent(data []byte) (realtime.Event, error) {
	return realtime.DecodeEnvelope(data)
}
