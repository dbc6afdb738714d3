package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultHeartbeatInterval is how often Source sends heartbeats.
const DefaultHeartbeatInterval = 25 * time.Second

// Source opens WebSocket push streams. The zero value is not usable; URL
// must be set.
type Source struct {
	URL               string
	Cookie            string
	PingTimeout       time.Duration // 0 means DefaultPingTimeout
	HeartbeatInterval time.Duration // 0 means DefaultHeartbeatInterval
	Logger            *slog.Logger
}

// Stream connects, joins rooms, and returns the event channel. The first room
// is the user's own room and must be accepted; rejected group rooms are
// logged and skipped. The channel closes when the connection ends, with the
// final event carrying the cause.
func (s *Source) Stream(ctx context.Context, rooms []string) (<-chan Event, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c, err := Connect(ctx, s.URL, s.Cookie)
	if err != nil {
		return nil, err
	}

	for i, room := range rooms {
		if err := c.Join(ctx, room); err != nil {
			if i > 0 && errors.Is(err, ErrRejected) {
				logger.Warn("push room rejected", "room", room, "error", err)
				continue
			}
			_ = c.Close()
			return nil, fmt.Errorf("join %s: %w", room, err)
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	interval := s.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	c.StartHeartbeat(streamCtx, interval, func(err error) {
		logger.Debug("heartbeat failed", "error", err)
	})

	timeout := s.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	in := c.ListenWithTimeout(streamCtx, timeout)
	out := make(chan Event, cap(in))
	go func() {
		defer close(out)
		defer cancel()
		defer func() { _ = c.Close() }()
		for ev := range in {
			select {
			case out <- ev:
			case <-streamCtx.Done():
				return
			}
		}
	}()
	logger.Debug("push connected", "url", s.URL, "rooms", strings.Join(c.Rooms(), ","))
	return out, nil
}
